package ledger

import (
	"time"

	"github.com/pep-constellation/pep-core/peperr"
)

// CreateUser allocates a fresh internal id and records identifier as its
// first (primary, display) identifier.
func (s *State) CreateUser(identifier string, now time.Time) (User, error) {
	if _, err := s.Users.Get(identifier, now); err == nil {
		return User{}, peperr.New(peperr.KindRecordConflict, "user identifier already exists: "+identifier)
	}
	s.nextUserID++
	return s.Users.Append(User{
		InternalID: s.nextUserID,
		Identifier: identifier,
		IsPrimary:  true,
		IsDisplay:  true,
	}, false, now), nil
}

// AddIdentifier attaches a new, non-primary non-display identifier to an
// existing user (by internal id).
func (s *State) AddIdentifier(internalID uint64, identifier string, now time.Time) (User, error) {
	if _, err := s.Users.Get(identifier, now); err == nil {
		return User{}, peperr.New(peperr.KindRecordConflict, "user identifier already exists: "+identifier)
	}
	return s.Users.Append(User{
		InternalID: internalID,
		Identifier: identifier,
	}, false, now), nil
}

// RemoveIdentifier tombstones one identifier row for a user.
func (s *State) RemoveIdentifier(identifier string, now time.Time) error {
	u, err := s.Users.Get(identifier, now)
	if err != nil {
		return err
	}
	s.Users.Append(u, true, now)
	return nil
}

// SetPrimary flags identifier as the user's primary login, clearing the
// flag from whichever identifier currently holds it for the same internal
// id: at most one primary per user at any time.
func (s *State) SetPrimary(identifier string, now time.Time) (User, error) {
	target, err := s.Users.Get(identifier, now)
	if err != nil {
		return User{}, err
	}
	for _, other := range s.Users.Current(now) {
		if other.InternalID == target.InternalID && other.Identifier != identifier && other.IsPrimary {
			other.IsPrimary = false
			s.Users.Append(other, false, now)
		}
	}
	target.IsPrimary = true
	return s.Users.Append(target, false, now), nil
}

// SetDisplay flags identifier as the user's human-readable label, clearing
// the flag from whichever identifier currently holds it for the same
// internal id.
func (s *State) SetDisplay(identifier string, now time.Time) (User, error) {
	target, err := s.Users.Get(identifier, now)
	if err != nil {
		return User{}, err
	}
	for _, other := range s.Users.Current(now) {
		if other.InternalID == target.InternalID && other.Identifier != identifier && other.IsDisplay {
			other.IsDisplay = false
			s.Users.Append(other, false, now)
		}
	}
	target.IsDisplay = true
	return s.Users.Append(target, false, now), nil
}

// UserGroupProps configures group properties at creation time.
type UserGroupProps struct {
	MaxAuthValidity *time.Duration
}

// CreateUserGroup allocates a fresh internal id for a new user group.
func (s *State) CreateUserGroup(name string, props UserGroupProps, now time.Time) (UserGroup, error) {
	if _, err := s.UserGroups.Get(name, now); err == nil {
		return UserGroup{}, peperr.New(peperr.KindRecordConflict, "user group already exists: "+name)
	}
	s.nextUserGroupID++
	return s.UserGroups.Append(UserGroup{
		InternalID: s.nextUserGroupID,
		Name:       name,
		Properties: UserGroupProperties{MaxAuthValidity: props.MaxAuthValidity},
	}, false, now), nil
}

// AddUserToGroup records membership of internalUserID in userGroupID.
func (s *State) AddUserToGroup(internalUserID, userGroupID uint64, now time.Time) UserGroupMember {
	return s.UserGroupMembers.Append(UserGroupMember{
		InternalUserID: internalUserID,
		UserGroupID:    userGroupID,
	}, false, now)
}

// RemoveUserFromGroup tombstones the membership record.
func (s *State) RemoveUserFromGroup(internalUserID, userGroupID uint64, now time.Time) error {
	key := keyUint(internalUserID) + "\x00" + keyUint(userGroupID)
	m, err := s.UserGroupMembers.Get(key, now)
	if err != nil {
		return err
	}
	s.UserGroupMembers.Append(m, true, now)
	return nil
}

// FindUserByIdentifier resolves identifier to its current User row.
func (s *State) FindUserByIdentifier(identifier string, now time.Time) (User, error) {
	return s.Users.Get(identifier, now)
}

// IdentifiersForUser lists every current identifier row sharing
// internalID.
func (s *State) IdentifiersForUser(internalID uint64, now time.Time) []User {
	var out []User
	for _, u := range s.Users.Current(now) {
		if u.InternalID == internalID {
			out = append(out, u)
		}
	}
	return out
}

// SetStructureMetadata writes a (subject, group, subkey) -> value entry.
func (s *State) SetStructureMetadata(subject SubjectType, subjectName string, subjectID uint64, group, subkey, value string, now time.Time) StructureMetadata {
	return s.StructureMetadataLog.Append(StructureMetadata{
		Subject:       subject,
		SubjectName:   subjectName,
		SubjectID:     subjectID,
		MetadataGroup: group,
		Subkey:        subkey,
		Value:         value,
	}, false, now)
}

// RemoveStructureMetadata tombstones a (subject, group, subkey) entry.
func (s *State) RemoveStructureMetadata(subject SubjectType, subjectName string, subjectID uint64, group, subkey string, now time.Time) error {
	key := StructureMetadata{Subject: subject, SubjectName: subjectName, SubjectID: subjectID, MetadataGroup: group, Subkey: subkey}.NaturalKey()
	m, err := s.StructureMetadataLog.Get(key, now)
	if err != nil {
		return err
	}
	s.StructureMetadataLog.Append(m, true, now)
	return nil
}

// GetStructureMetadata reads current metadata for (subject, group); an
// empty subkey filter acts as a wildcard over the whole group (spec
// §4.5).
func (s *State) GetStructureMetadata(subject SubjectType, subjectName string, subjectID uint64, group, subkeyFilter string, now time.Time) []StructureMetadata {
	var out []StructureMetadata
	for _, m := range s.StructureMetadataLog.Current(now) {
		if m.Subject != subject || m.MetadataGroup != group {
			continue
		}
		if subject == SubjectUser || subject == SubjectUserGroup {
			if m.SubjectID != subjectID {
				continue
			}
		} else if m.SubjectName != subjectName {
			continue
		}
		if subkeyFilter != "" && m.Subkey != subkeyFilter {
			continue
		}
		out = append(out, m)
	}
	return out
}
