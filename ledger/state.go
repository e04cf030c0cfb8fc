package ledger

import (
	"time"

	"github.com/pep-constellation/pep-core/peperr"
)

// State is the Access Manager's full authoritative ledger: one Log per
// record family, composed behind a single type so ticket issuance and
// admin operations can take one value as their snapshot root.
type State struct {
	Columns                  *Log[Column]
	ColumnGroups              *Log[ColumnGroup]
	ColumnGroupColumns         *Log[ColumnGroupColumn]
	ColumnGroupAccessRules     *Log[ColumnGroupAccessRule]
	ParticipantGroups          *Log[ParticipantGroup]
	ParticipantGroupParticipants *Log[ParticipantGroupParticipant]
	ParticipantGroupAccessRules *Log[ParticipantGroupAccessRule]
	ColumnNameMappings         *Log[ColumnNameMapping]
	Users                      *Log[User]
	UserGroups                 *Log[UserGroup]
	UserGroupMembers           *Log[UserGroupMember]
	StructureMetadataLog       *Log[StructureMetadata]
	TokenBlocklist             *Log[TokenBlocklistEntry]

	// ImplicitAccessRules is an explicit, data-driven table of user-group
	// name -> modes granted regardless of an explicit rule record,
	// checked alongside ColumnGroupAccessRule.
	ImplicitAccessRules map[string][]Mode

	ShortPseudonyms *ShortPseudonymIndex

	nextUserID      uint64
	nextUserGroupID uint64
}

// NewState constructs an empty ledger with no implicit access rules.
func NewState() *State {
	return &State{
		Columns:                      NewLog[Column](),
		ColumnGroups:                 NewLog[ColumnGroup](),
		ColumnGroupColumns:           NewLog[ColumnGroupColumn](),
		ColumnGroupAccessRules:       NewLog[ColumnGroupAccessRule](),
		ParticipantGroups:            NewLog[ParticipantGroup](),
		ParticipantGroupParticipants: NewLog[ParticipantGroupParticipant](),
		ParticipantGroupAccessRules:  NewLog[ParticipantGroupAccessRule](),
		ColumnNameMappings:           NewLog[ColumnNameMapping](),
		Users:                        NewLog[User](),
		UserGroups:                   NewLog[UserGroup](),
		UserGroupMembers:             NewLog[UserGroupMember](),
		StructureMetadataLog:         NewLog[StructureMetadata](),
		TokenBlocklist:               NewLog[TokenBlocklistEntry](),
		ImplicitAccessRules:          make(map[string][]Mode),
		ShortPseudonyms:              NewShortPseudonymIndex(),
	}
}

// ChainNames lists every checksum-chained record family.
func (s *State) ChainNames() []string {
	return []string{
		"columns", "column_groups", "column_group_columns",
		"column_group_access_rules", "participant_groups",
		"participant_group_participants", "participant_group_access_rules",
		"column_name_mappings", "users", "user_groups", "user_group_members",
		"structure_metadata", "token_blocklist",
	}
}

// Compute returns the checksum and checkpoint for the named chain, up to
// an optional maximum checkpoint.
func (s *State) Compute(chain string, maxCheckpoint uint64) (Checksum, uint64, error) {
	switch chain {
	case "columns":
		c, cp := Compute(s.Columns, maxCheckpoint)
		return c, cp, nil
	case "column_groups":
		c, cp := Compute(s.ColumnGroups, maxCheckpoint)
		return c, cp, nil
	case "column_group_columns":
		c, cp := Compute(s.ColumnGroupColumns, maxCheckpoint)
		return c, cp, nil
	case "column_group_access_rules":
		c, cp := Compute(s.ColumnGroupAccessRules, maxCheckpoint)
		return c, cp, nil
	case "participant_groups":
		c, cp := Compute(s.ParticipantGroups, maxCheckpoint)
		return c, cp, nil
	case "participant_group_participants":
		c, cp := Compute(s.ParticipantGroupParticipants, maxCheckpoint)
		return c, cp, nil
	case "participant_group_access_rules":
		c, cp := Compute(s.ParticipantGroupAccessRules, maxCheckpoint)
		return c, cp, nil
	case "column_name_mappings":
		c, cp := Compute(s.ColumnNameMappings, maxCheckpoint)
		return c, cp, nil
	case "users":
		c, cp := Compute(s.Users, maxCheckpoint)
		return c, cp, nil
	case "user_groups":
		c, cp := Compute(s.UserGroups, maxCheckpoint)
		return c, cp, nil
	case "user_group_members":
		c, cp := Compute(s.UserGroupMembers, maxCheckpoint)
		return c, cp, nil
	case "structure_metadata":
		c, cp := Compute(s.StructureMetadataLog, maxCheckpoint)
		return c, cp, nil
	case "token_blocklist":
		c, cp := Compute(s.TokenBlocklist, maxCheckpoint)
		return c, cp, nil
	default:
		return Checksum{}, 0, peperr.New(peperr.KindNotFound, "no such checksum chain: "+chain)
	}
}

// ChecksumDigest computes chain's checksum up to maxCheckpoint and returns
// it stamped with the checkpoint it was computed at, ready to hand to a
// caller auditing the chain over the wire.
func (s *State) ChecksumDigest(chain string, maxCheckpoint uint64) ([]byte, error) {
	chk, checkpoint, err := s.Compute(chain, maxCheckpoint)
	if err != nil {
		return nil, err
	}
	return chk.Stamped(checkpoint), nil
}

// CreateColumn appends a new, non-tombstoned Column record. Returns
// peperr.RecordConflict if a current (non-tombstoned) column with the same
// name already exists at now.
func (s *State) CreateColumn(name string, now time.Time) (Column, error) {
	if _, err := s.Columns.Get(name, now); err == nil {
		return Column{}, peperr.New(peperr.KindRecordConflict, "column already exists: "+name)
	}
	return s.Columns.Append(Column{Name: name}, false, now), nil
}

// RemoveColumn tombstones the column and cascades the tombstone to every
// ColumnGroupColumn that referenced it, so removing a column never leaves
// a group membership pointing at it. Access rules name column groups, not
// columns, so no ColumnGroupAccessRule is touched.
func (s *State) RemoveColumn(name string, now time.Time) error {
	col, err := s.Columns.Get(name, now)
	if err != nil {
		return err
	}
	s.Columns.Append(col, true, now)

	for key, m := range s.ColumnGroupColumns.Current(now) {
		if m.Column == name {
			s.ColumnGroupColumns.Append(m, true, now)
			_ = key
		}
	}
	return nil
}

// CreateColumnGroup appends a new ColumnGroup record.
func (s *State) CreateColumnGroup(name string, now time.Time) (ColumnGroup, error) {
	if _, err := s.ColumnGroups.Get(name, now); err == nil {
		return ColumnGroup{}, peperr.New(peperr.KindRecordConflict, "column group already exists: "+name)
	}
	return s.ColumnGroups.Append(ColumnGroup{Name: name}, false, now), nil
}

// RemoveColumnGroup tombstones the group and cascades to its memberships
// and access rules.
func (s *State) RemoveColumnGroup(name string, now time.Time) error {
	g, err := s.ColumnGroups.Get(name, now)
	if err != nil {
		return err
	}
	s.ColumnGroups.Append(g, true, now)

	for _, m := range s.ColumnGroupColumns.Current(now) {
		if m.Group == name {
			s.ColumnGroupColumns.Append(m, true, now)
		}
	}
	for _, r := range s.ColumnGroupAccessRules.Current(now) {
		if r.ColumnGroup == name {
			s.ColumnGroupAccessRules.Append(r, true, now)
		}
	}
	return nil
}

// AddColumnToGroup records that column belongs to group.
func (s *State) AddColumnToGroup(group, column string, now time.Time) ColumnGroupColumn {
	return s.ColumnGroupColumns.Append(ColumnGroupColumn{Group: group, Column: column}, false, now)
}

// GrantColumnGroupAccess records that userGroup may access columnGroup in
// mode.
func (s *State) GrantColumnGroupAccess(columnGroup, userGroup string, mode Mode, now time.Time) ColumnGroupAccessRule {
	return s.ColumnGroupAccessRules.Append(ColumnGroupAccessRule{
		ColumnGroup: columnGroup,
		UserGroup:   userGroup,
		Mode:        mode,
	}, false, now)
}

// ColumnsInGroup resolves a column group to its current member columns.
func (s *State) ColumnsInGroup(group string, now time.Time) []string {
	var out []string
	for _, m := range s.ColumnGroupColumns.Current(now) {
		if m.Group == group {
			out = append(out, m.Column)
		}
	}
	return out
}

// HasColumnGroupAccess reports whether userGroup has mode over
// columnGroup, checking explicit rules and then ImplicitAccessRules.
func (s *State) HasColumnGroupAccess(columnGroup, userGroup string, mode Mode, now time.Time) bool {
	for _, r := range s.ColumnGroupAccessRules.Current(now) {
		if r.ColumnGroup == columnGroup && r.UserGroup == userGroup && r.Mode == mode {
			return true
		}
	}
	for _, m := range s.ImplicitAccessRules[userGroup] {
		if m == mode {
			return true
		}
	}
	return false
}

// CreateParticipantGroup appends a new ParticipantGroup record.
func (s *State) CreateParticipantGroup(name string, now time.Time) (ParticipantGroup, error) {
	if _, err := s.ParticipantGroups.Get(name, now); err == nil {
		return ParticipantGroup{}, peperr.New(peperr.KindRecordConflict, "participant group already exists: "+name)
	}
	return s.ParticipantGroups.Append(ParticipantGroup{Name: name}, false, now), nil
}

// AddParticipantToGroup records that the participant identified by its
// Access-Manager-local pseudonym belongs to group.
func (s *State) AddParticipantToGroup(group, lpAtAM string, now time.Time) ParticipantGroupParticipant {
	return s.ParticipantGroupParticipants.Append(ParticipantGroupParticipant{
		Group:              group,
		LocalPseudonymAtAM: lpAtAM,
	}, false, now)
}

// RemoveParticipantFromGroup tombstones the membership record, so a
// snapshot taken after now excludes the participant from the group.
func (s *State) RemoveParticipantFromGroup(group, lpAtAM string, now time.Time) error {
	key := group + "\x00" + lpAtAM
	m, err := s.ParticipantGroupParticipants.Get(key, now)
	if err != nil {
		return err
	}
	s.ParticipantGroupParticipants.Append(m, true, now)
	return nil
}

// ParticipantsInGroup resolves a participant group to its current member
// local pseudonyms (at the Access Manager) as of at, evaluated strictly
// against records with Timestamp <= at, so a ticket issued before a later
// membership change is unaffected by it.
func (s *State) ParticipantsInGroup(group string, at time.Time) []string {
	var out []string
	for _, m := range s.ParticipantGroupParticipants.Current(at) {
		if m.Group == group {
			out = append(out, m.LocalPseudonymAtAM)
		}
	}
	return out
}

// GrantParticipantGroupAccess records that userGroup may access
// participantGroup in mode.
func (s *State) GrantParticipantGroupAccess(participantGroup, userGroup string, mode Mode, now time.Time) ParticipantGroupAccessRule {
	return s.ParticipantGroupAccessRules.Append(ParticipantGroupAccessRule{
		ParticipantGroup: participantGroup,
		UserGroup:        userGroup,
		Mode:             mode,
	}, false, now)
}

// HasParticipantGroupAccess reports whether userGroup has mode over
// participantGroup.
func (s *State) HasParticipantGroupAccess(participantGroup, userGroup string, mode Mode, now time.Time) bool {
	for _, r := range s.ParticipantGroupAccessRules.Current(now) {
		if r.ParticipantGroup == participantGroup && r.UserGroup == userGroup && r.Mode == mode {
			return true
		}
	}
	return false
}

// MapColumnName records a 1:1 alias from original to mapped.
func (s *State) MapColumnName(original, mapped string, now time.Time) (ColumnNameMapping, error) {
	if _, err := s.ColumnNameMappings.Get(original, now); err == nil {
		return ColumnNameMapping{}, peperr.New(peperr.KindRecordConflict, "mapping already exists for "+original)
	}
	return s.ColumnNameMappings.Append(ColumnNameMapping{Original: original, Mapped: mapped}, false, now), nil
}

// BlocklistToken refuses the bearer token identified by (subject, group,
// issuedAt) for the remainder of its validity window.
func (s *State) BlocklistToken(subject, group string, issuedAt time.Time, reason string, now time.Time) (TokenBlocklistEntry, error) {
	key := subject + "\x00" + group + "\x00" + issuedAt.UTC().Format(time.RFC3339Nano)
	if _, err := s.TokenBlocklist.Get(key, now); err == nil {
		return TokenBlocklistEntry{}, peperr.New(peperr.KindRecordConflict, "token already blocklisted: "+key)
	}
	return s.TokenBlocklist.Append(TokenBlocklistEntry{
		Subject:  subject,
		Group:    group,
		IssuedAt: issuedAt,
		Reason:   reason,
	}, false, now), nil
}

// RemoveBlocklistEntry tombstones the matching blocklist entry, restoring
// acceptance of the token it named.
func (s *State) RemoveBlocklistEntry(subject, group string, issuedAt time.Time, now time.Time) error {
	key := subject + "\x00" + group + "\x00" + issuedAt.UTC().Format(time.RFC3339Nano)
	e, err := s.TokenBlocklist.Get(key, now)
	if err != nil {
		return err
	}
	s.TokenBlocklist.Append(e, true, now)
	return nil
}

// IsTokenBlocklisted reports whether the token identified by (subject,
// group, issuedAt) currently has a non-tombstoned blocklist entry.
func (s *State) IsTokenBlocklisted(subject, group string, issuedAt time.Time, now time.Time) bool {
	key := subject + "\x00" + group + "\x00" + issuedAt.UTC().Format(time.RFC3339Nano)
	_, err := s.TokenBlocklist.Get(key, now)
	return err == nil
}
