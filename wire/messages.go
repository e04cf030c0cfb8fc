package wire

import (
	"time"

	"github.com/pep-constellation/pep-core/ledger"
)

// Mode re-exports ledger.Mode so callers don't need both imports just to
// build a request.
type Mode = ledger.Mode

// TicketBytes carries a ticket in its signed, canonical wire form; am/ts/
// ks/sf deserialise it back into a ticket.Ticket2 plus its signature
// chain before acting on it.
type TicketBytes []byte

// KeyRequestEntry is one element of an EncryptionKeyRequest: the metadata
// and blinded polymorphic encryption key for a single cell, plus which
// pseudonym (by index into the ticket) it belongs to.
type KeyRequestEntry struct {
	Metadata               []byte `json:"metadata"`
	PolymorphicEncryptionKey []byte `json:"polymorphic_encryption_key"`
	BlindMode              bool   `json:"blind_mode"`
	PseudonymIndex         int    `json:"pseudonym_index"`
}

// EncryptionKeyRequest asks the Key Server to transcrypt a batch of
// per-cell encrypted keys into the requester's local representation.
type EncryptionKeyRequest struct {
	Ticket  TicketBytes       `json:"ticket"`
	Entries []KeyRequestEntry `json:"entries"`
}

// EncryptionKeyResponse returns one resolved key per request entry, same
// order.
type EncryptionKeyResponse struct {
	Keys [][]byte `json:"keys"`
}

// TicketIssueRequest asks the Access Manager to issue a ticket for the
// caller's (already certificate-authenticated) identity over the named
// column and participant groups.
type TicketIssueRequest struct {
	ColumnGroup                  string `json:"column_group"`
	ParticipantGroup             string `json:"participant_group"`
	Modes                        []Mode `json:"modes"`
	IncludeAccessGroupPseudonyms bool   `json:"include_access_group_pseudonyms"`
}

// TicketIssueResponse carries the signed ticket plus its group-expansion
// indices, both serialised.
type TicketIssueResponse struct {
	Ticket                  TicketBytes      `json:"ticket"`
	ColumnGroupIndices      map[string][]int `json:"column_group_indices"`
	ParticipantGroupIndices map[string][]int `json:"participant_group_indices"`
}

// ColumnAccessRequest asks the Access Manager which columns/column-groups
// the ticket's user-group may access.
type ColumnAccessRequest struct {
	Ticket          TicketBytes `json:"ticket"`
	IncludeImplicit bool        `json:"include_implicit"`
	RequireModes    []Mode      `json:"require_modes"`
}

// ColumnGroupAccess names a column group's granted modes and resolved
// member columns.
type ColumnGroupAccess struct {
	Modes   []Mode   `json:"modes"`
	Columns []string `json:"columns"`
}

// ColumnAccessResponse answers a ColumnAccessRequest.
type ColumnAccessResponse struct {
	ColumnGroups map[string]ColumnGroupAccess `json:"column_groups"`
	Columns      []string                     `json:"columns"`
}

// ParticipantGroupAccessRequest asks which participant groups the ticket's
// user-group may access.
type ParticipantGroupAccessRequest struct {
	Ticket          TicketBytes `json:"ticket"`
	IncludeImplicit bool        `json:"include_implicit"`
}

// ParticipantGroupAccessResponse answers a ParticipantGroupAccessRequest.
type ParticipantGroupAccessResponse struct {
	Groups map[string][]Mode `json:"groups"`
}

// DataStoreEntry is one cell write: its metadata, per-cell polymorphic
// key, and indices into the ticket's column/pseudonym vectors.
type DataStoreEntry struct {
	Metadata        []byte `json:"metadata"`
	PolymorphicKey  []byte `json:"polymorphic_key"`
	ColumnIndex     int    `json:"column_index"`
	PseudonymIndex  int    `json:"pseudonym_index"`
	Payload         []byte `json:"payload"`
}

// DataStoreRequest writes a batch of cells under the caller's ticket.
type DataStoreRequest struct {
	Ticket  TicketBytes      `json:"ticket"`
	Entries []DataStoreEntry `json:"entries"`
}

// DataStoreResponse returns the stored head ids. sf.Serve fills only IDs
// and leaves Hash empty; the per-cell page hash is returned only by the
// in-process sf.Server.Store.
type DataStoreResponse struct {
	IDs  []string `json:"ids"`
	Hash []byte   `json:"hash"`
}

// DataReadRequest asks for the current payload of a batch of cell ids,
// answered by a stream of DataPayloadPage frames terminated by
// TypeStreamEnd.
type DataReadRequest struct {
	Ticket TicketBytes `json:"ticket"`
	IDs    []string    `json:"ids"`
}

// DataPayloadPage is one streamed page of a DataReadRequest's answer.
type DataPayloadPage struct {
	ID         string `json:"id"`
	PageIndex  int    `json:"page_index"`
	PageCount  int    `json:"page_count"`
	Ciphertext []byte `json:"ciphertext"`
	Nonce      []byte `json:"nonce"`
}

// DataEnumerationRequest lists current cells, optionally filtered by
// column or pseudonym, answered by a stream of DataEnumerationEntry.
type DataEnumerationRequest struct {
	Ticket     TicketBytes `json:"ticket"`
	Columns    []string    `json:"columns,omitempty"`
	Pseudonyms [][]byte    `json:"pseudonyms,omitempty"`
}

// DataEnumerationEntry is one row of an enumeration stream.
type DataEnumerationEntry struct {
	ID        string `json:"id"`
	Column    string `json:"column"`
	Pseudonym []byte `json:"pseudonym"`
	Metadata  []byte `json:"metadata"`
}

// DataHistoryRequest lists every historical (including tombstoned) cell
// version, answered by a stream of DataHistoryEntry.
type DataHistoryRequest struct {
	Ticket     TicketBytes `json:"ticket"`
	Columns    []string    `json:"columns,omitempty"`
	Pseudonyms [][]byte    `json:"pseudonyms,omitempty"`
}

// DataHistoryEntry is one row of a history stream.
type DataHistoryEntry struct {
	ID        string    `json:"id"`
	Column    string    `json:"column"`
	Pseudonym []byte    `json:"pseudonym"`
	Timestamp time.Time `json:"timestamp"`
	Tombstone bool      `json:"tombstone"`
}

// DataDeleteRequest tombstones a batch of cell ids.
type DataDeleteRequest struct {
	Ticket  TicketBytes `json:"ticket"`
	Entries []string    `json:"entries"`
}

// DataDeleteResponse confirms the tombstone timestamp applied.
type DataDeleteResponse struct {
	Timestamp time.Time `json:"timestamp"`
	Entries   []string  `json:"entries"`
}

// MetadataReadRequest reads only a cell's head metadata, skipping payload
// resolution entirely.
type MetadataReadRequest struct {
	Ticket TicketBytes `json:"ticket"`
	IDs    []string    `json:"ids"`
}

// MetadataReadResponse answers a MetadataReadRequest.
type MetadataReadResponse struct {
	Metadata map[string][]byte `json:"metadata"`
}

// MetadataUpdateRequest writes a metadata-only head, inheriting payload
// from OriginalID.
type MetadataUpdateRequest struct {
	Ticket     TicketBytes `json:"ticket"`
	OriginalID string      `json:"original_id"`
	Metadata   []byte      `json:"metadata"`
}

// MetadataUpdateResponse confirms the new head id.
type MetadataUpdateResponse struct {
	ID string `json:"id"`
}

// ColumnNameMappingAction selects a ColumnNameMappingRequest's operation.
type ColumnNameMappingAction string

const (
	ColumnNameMappingActionCreate ColumnNameMappingAction = "create"
	ColumnNameMappingActionRemove ColumnNameMappingAction = "remove"
	ColumnNameMappingActionLookup ColumnNameMappingAction = "lookup"
)

// ColumnNameMappingRequest is an Access Manager admin operation managing
// column-name aliases.
type ColumnNameMappingRequest struct {
	Ticket   TicketBytes             `json:"ticket"`
	Action   ColumnNameMappingAction `json:"action"`
	Original string                  `json:"original,omitempty"`
	Mapped   string                  `json:"mapped,omitempty"`
}

// ColumnNameMappingResponse answers a ColumnNameMappingRequest.
type ColumnNameMappingResponse struct {
	Mapped string `json:"mapped,omitempty"`
}

// StructureMetadataRequest reads structure metadata, optionally filtered
// by a wildcard subkey prefix.
type StructureMetadataRequest struct {
	Ticket    TicketBytes `json:"ticket"`
	Subject   string      `json:"subject"`
	SubKey    string      `json:"sub_key,omitempty"`
}

// StructureMetadataResponse returns matching key/value pairs.
type StructureMetadataResponse struct {
	Entries map[string]string `json:"entries"`
}

// SetStructureMetadataRequest writes (or, if Value is nil, removes) a
// structure metadata entry.
type SetStructureMetadataRequest struct {
	Ticket  TicketBytes `json:"ticket"`
	Subject string      `json:"subject"`
	SubKey  string      `json:"sub_key"`
	Value   *string     `json:"value,omitempty"`
}

// UserMutationAction selects a UserMutationRequest's operation.
type UserMutationAction string

const (
	UserMutationActionCreateUser       UserMutationAction = "create_user"
	UserMutationActionRemoveUser       UserMutationAction = "remove_user"
	UserMutationActionAddIdentifier    UserMutationAction = "add_identifier"
	UserMutationActionRemoveIdentifier UserMutationAction = "remove_identifier"
	UserMutationActionSetPrimary       UserMutationAction = "set_primary"
	UserMutationActionSetDisplay       UserMutationAction = "set_display"
	UserMutationActionCreateGroup      UserMutationAction = "create_group"
	UserMutationActionAddToGroup       UserMutationAction = "add_to_group"
	UserMutationActionRemoveFromGroup  UserMutationAction = "remove_from_group"
)

// UserMutationRequest is an Access Manager admin operation against the
// user/identifier/group model.
type UserMutationRequest struct {
	Ticket     TicketBytes        `json:"ticket"`
	Action     UserMutationAction `json:"action"`
	Identifier string             `json:"identifier,omitempty"`
	Group      string             `json:"group,omitempty"`
}

// UserMutationResponse confirms a UserMutationRequest.
type UserMutationResponse struct {
	OK bool `json:"ok"`
}

// UserQuery lists users and their current identifiers/group memberships.
type UserQuery struct {
	Ticket TicketBytes `json:"ticket"`
	Group  string      `json:"group,omitempty"`
}

// UserQueryResponse answers a UserQuery.
type UserQueryResponse struct {
	Identifiers []string `json:"identifiers"`
}

// FindUserRequest resolves a single identifier to its owning user's
// current identifier set.
type FindUserRequest struct {
	Ticket     TicketBytes `json:"ticket"`
	Identifier string      `json:"identifier"`
}

// FindUserResponse answers a FindUserRequest.
type FindUserResponse struct {
	Identifiers []string `json:"identifiers"`
	Primary     string   `json:"primary,omitempty"`
	Display     string   `json:"display,omitempty"`
}

// AsaTokenRequest asks the authentication service for a bearer token
// scoped to (subject, group) with the given expiration.
type AsaTokenRequest struct {
	Subject        string    `json:"subject"`
	Group          string    `json:"group"`
	ExpirationTime time.Time `json:"expiration_time"`
}

// AsaTokenResponse returns the issued opaque token.
type AsaTokenResponse struct {
	Token string `json:"token"`
}

// TokenBlocklistListRequest lists currently blocklisted token ids, each in
// the subject\x00group\x00issuedAt form TokenBlocklistCreateRequest and
// TokenBlocklistRemoveRequest also take: a client holding a live token
// recovers the same id via am.Server.TokenID before calling either.
type TokenBlocklistListRequest struct {
	Ticket TicketBytes `json:"ticket"`
}

// TokenBlocklistListResponse answers a TokenBlocklistListRequest.
type TokenBlocklistListResponse struct {
	TokenIDs []string `json:"token_ids"`
}

// TokenBlocklistCreateRequest blocklists the token named by TokenID,
// refusing it for the remainder of its validity window even though it has
// not expired. TokenID is the subject\x00group\x00issuedAt identifier a
// TokenBlocklistListRequest returns, not the bearer token string itself.
type TokenBlocklistCreateRequest struct {
	Ticket  TicketBytes `json:"ticket"`
	TokenID string      `json:"token_id"`
	Reason  string      `json:"reason,omitempty"`
}

// TokenBlocklistCreateResponse acknowledges a TokenBlocklistCreateRequest.
type TokenBlocklistCreateResponse struct{}

// TokenBlocklistRemoveRequest lifts a previously created blocklist entry
// named by TokenID, in the same identifier form TokenBlocklistListRequest
// returns.
type TokenBlocklistRemoveRequest struct {
	Ticket  TicketBytes `json:"ticket"`
	TokenID string      `json:"token_id"`
}

// TokenBlocklistRemoveResponse acknowledges a TokenBlocklistRemoveRequest.
type TokenBlocklistRemoveResponse struct{}

// TranscryptHopRequest asks a Transcryptor to apply its own reshuffle/rekey
// secret share to a single ElGamal ciphertext currently encrypted under
// CurrentY: one hop of a pseudonymisation or key-transcryption chain.
type TranscryptHopRequest struct {
	B         []byte `json:"b"`
	C         []byte `json:"c"`
	CurrentY  []byte `json:"current_y"`
}

// TranscryptHopResponse returns the rewritten ciphertext plus the public
// key it is now encrypted under.
type TranscryptHopResponse struct {
	B      []byte `json:"b"`
	C      []byte `json:"c"`
	NewY   []byte `json:"new_y"`
}
