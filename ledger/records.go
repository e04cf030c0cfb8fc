// Package ledger implements the Access Manager's authoritative,
// append-only, tombstoned state: columns, column groups, participant
// groups, access rules, users, user groups, structure metadata and the
// checksum chains that detect tampering across all of them.
package ledger

import "time"

// Mode is one of the access modes a rule can grant.
type Mode string

const (
	ModeRead       Mode = "read"
	ModeWrite      Mode = "write"
	ModeReadMeta   Mode = "read-meta"
	ModeWriteMeta  Mode = "write-meta"
	ModeAccess     Mode = "access"
	ModeEnumerate  Mode = "enumerate"
)

// Header is embedded in every record family: a monotonic seqno, an
// unforgeable checksum nonce, the record's timestamp, and whether it is a
// tombstone superseding a prior record with the same natural key.
type Header struct {
	Seqno         uint64
	ChecksumNonce [16]byte
	Timestamp     time.Time
	Tombstone     bool
}

// Column names a storable column.
type Column struct {
	Header
	Name string
}

func (c Column) NaturalKey() string { return c.Name }

// ColumnGroup names a group of columns.
type ColumnGroup struct {
	Header
	Name string
}

func (g ColumnGroup) NaturalKey() string { return g.Name }

// ColumnGroupColumn records that Column is a member of Group.
type ColumnGroupColumn struct {
	Header
	Group  string
	Column string
}

func (m ColumnGroupColumn) NaturalKey() string { return m.Group + "\x00" + m.Column }

// ColumnGroupAccessRule grants UserGroup the given Mode over ColumnGroup.
type ColumnGroupAccessRule struct {
	Header
	ColumnGroup string
	UserGroup   string
	Mode        Mode
}

func (r ColumnGroupAccessRule) NaturalKey() string {
	return r.ColumnGroup + "\x00" + r.UserGroup + "\x00" + string(r.Mode)
}

// ParticipantGroup names a group of participants.
type ParticipantGroup struct {
	Header
	Name string
}

func (g ParticipantGroup) NaturalKey() string { return g.Name }

// ParticipantGroupParticipant records that the participant identified by
// its local pseudonym at the Access Manager is a member of Group.
type ParticipantGroupParticipant struct {
	Header
	Group                  string
	LocalPseudonymAtAM     string // packed Point, hex/base64-encoded by caller
}

func (m ParticipantGroupParticipant) NaturalKey() string {
	return m.Group + "\x00" + m.LocalPseudonymAtAM
}

// ParticipantGroupAccessRule grants UserGroup the given Mode over
// ParticipantGroup.
type ParticipantGroupAccessRule struct {
	Header
	ParticipantGroup string
	UserGroup        string
	Mode             Mode
}

func (r ParticipantGroupAccessRule) NaturalKey() string {
	return r.ParticipantGroup + "\x00" + r.UserGroup + "\x00" + string(r.Mode)
}

// ColumnNameMapping aliases Original to Mapped, 1:1.
type ColumnNameMapping struct {
	Header
	Original string
	Mapped   string
}

func (m ColumnNameMapping) NaturalKey() string { return m.Original }

// User is one identifier row for a user; InternalID is stable across
// identifier renames.
type User struct {
	Header
	InternalID uint64
	Identifier string
	IsPrimary  bool
	IsDisplay  bool
}

func (u User) NaturalKey() string { return u.Identifier }

// UserGroupProperties holds the (currently singular) configurable property
// set of a user group.
type UserGroupProperties struct {
	MaxAuthValidity *time.Duration
}

// UserGroup is a named group of users with an internal id stable across
// renames.
type UserGroup struct {
	Header
	InternalID uint64
	Name       string
	Properties UserGroupProperties
}

func (g UserGroup) NaturalKey() string { return g.Name }

// UserGroupMember records that InternalUserID belongs to UserGroupID.
type UserGroupMember struct {
	Header
	InternalUserID  uint64
	UserGroupID     uint64
}

func (m UserGroupMember) NaturalKey() string {
	return keyUint(m.InternalUserID) + "\x00" + keyUint(m.UserGroupID)
}

// SubjectType identifies the kind of entity a StructureMetadata entry
// attaches to.
type SubjectType string

const (
	SubjectColumn           SubjectType = "Column"
	SubjectColumnGroup      SubjectType = "ColumnGroup"
	SubjectParticipantGroup SubjectType = "ParticipantGroup"
	SubjectUser             SubjectType = "User"
	SubjectUserGroup        SubjectType = "UserGroup"
)

// StructureMetadata is a single (subject, group, subkey) -> value entry.
// Users and UserGroups identify their subject by internal id (so renames
// preserve metadata); other subject types use name.
type StructureMetadata struct {
	Header
	Subject       SubjectType
	SubjectName   string // used when Subject has no stable internal id
	SubjectID     uint64 // used when Subject is User or UserGroup
	MetadataGroup string
	Subkey        string
	Value         string
}

func (m StructureMetadata) NaturalKey() string {
	subj := m.SubjectName
	if m.Subject == SubjectUser || m.Subject == SubjectUserGroup {
		subj = keyUint(m.SubjectID)
	}
	return string(m.Subject) + "\x00" + subj + "\x00" + m.MetadataGroup + "\x00" + m.Subkey
}

// TokenBlocklistEntry refuses a previously issued bearer token for the
// remainder of its validity window, identified by the same
// (subject, group, issued_at) triple the token itself carries.
type TokenBlocklistEntry struct {
	Header
	Subject  string
	Group    string
	IssuedAt time.Time
	Reason   string
}

func (e TokenBlocklistEntry) NaturalKey() string {
	return e.Subject + "\x00" + e.Group + "\x00" + e.IssuedAt.UTC().Format(time.RFC3339Nano)
}

func keyUint(v uint64) string {
	// Unpadded decimal digits: distinct values always give distinct keys.
	const digits = "0123456789"
	buf := make([]byte, 20)
	i := len(buf)
	if v == 0 {
		return "0"
	}
	for v > 0 {
		i--
		buf[i] = digits[v%10]
		v /= 10
	}
	return string(buf[i:])
}
