package am

import (
	"time"

	"github.com/pep-constellation/pep-core/ledger"
	"github.com/pep-constellation/pep-core/peperr"
	"github.com/pep-constellation/pep-core/ticket"
)

// AdminGroup is the user-group permitted to run the administrative
// operations below (column-name-mapping, structure-metadata, user
// mutation). Administration is modelled the same way every other
// resource is, as an access-rule check, so it is gated the same way
// column/participant access is, against this fixed sentinel group name
// rather than a separate permission system.
const AdminGroup = "pep-administrators"

func (s *Server) requireAdmin(requester ticket.Requester) error {
	if requester.UserGroup != AdminGroup {
		return peperr.AccessDenied("admin", "access", requester.UserGroup)
	}
	return nil
}

// MapColumnName creates a column-name alias.
func (s *Server) MapColumnName(requester ticket.Requester, original, mapped string, now time.Time) error {
	if err := s.requireAdmin(requester); err != nil {
		return err
	}
	_, err := s.State.MapColumnName(original, mapped, now)
	return err
}

// SetStructureMetadata writes a structure metadata entry.
func (s *Server) SetStructureMetadata(requester ticket.Requester, subject ledger.SubjectType, subjectName string, subjectID uint64, group, subkey, value string, now time.Time) error {
	if err := s.requireAdmin(requester); err != nil {
		return err
	}
	s.State.SetStructureMetadata(subject, subjectName, subjectID, group, subkey, value, now)
	return nil
}

// RemoveStructureMetadata removes a structure metadata entry.
func (s *Server) RemoveStructureMetadata(requester ticket.Requester, subject ledger.SubjectType, subjectName string, subjectID uint64, group, subkey string, now time.Time) error {
	if err := s.requireAdmin(requester); err != nil {
		return err
	}
	return s.State.RemoveStructureMetadata(subject, subjectName, subjectID, group, subkey, now)
}

// GetStructureMetadata reads structure metadata entries, open to any
// caller (read access is governed by the column/participant group rules
// covering the underlying data, not a separate admin check).
func (s *Server) GetStructureMetadata(subject ledger.SubjectType, subjectName string, subjectID uint64, group, subkeyFilter string, now time.Time) []ledger.StructureMetadata {
	return s.State.GetStructureMetadata(subject, subjectName, subjectID, group, subkeyFilter, now)
}

// CreateUser creates a new user with a single identifier.
func (s *Server) CreateUser(requester ticket.Requester, identifier string, now time.Time) (ledger.User, error) {
	if err := s.requireAdmin(requester); err != nil {
		return ledger.User{}, err
	}
	return s.State.CreateUser(identifier, now)
}

// AddIdentifier attaches a new identifier to an existing user.
func (s *Server) AddIdentifier(requester ticket.Requester, internalID uint64, identifier string, now time.Time) (ledger.User, error) {
	if err := s.requireAdmin(requester); err != nil {
		return ledger.User{}, err
	}
	return s.State.AddIdentifier(internalID, identifier, now)
}

// RemoveIdentifier tombstones an identifier.
func (s *Server) RemoveIdentifier(requester ticket.Requester, identifier string, now time.Time) error {
	if err := s.requireAdmin(requester); err != nil {
		return err
	}
	return s.State.RemoveIdentifier(identifier, now)
}

// FindUser resolves an identifier to its owning user's full identifier
// set, open to any caller: the wire FindUserRequest has no ticket
// requirement beyond certificate authentication.
func (s *Server) FindUser(identifier string, now time.Time) (ledger.User, []ledger.User, error) {
	user, err := s.State.FindUserByIdentifier(identifier, now)
	if err != nil {
		return ledger.User{}, nil, err
	}
	return user, s.State.IdentifiersForUser(user.InternalID, now), nil
}
