package am

import (
	"crypto/hmac"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"strings"
	"time"

	"github.com/pep-constellation/pep-core/ledger"
	"github.com/pep-constellation/pep-core/peperr"
	"github.com/pep-constellation/pep-core/ticket"
	"golang.org/x/crypto/sha3"
)

// tokenPayload is the signed body of an opaque bearer token: the
// (subject, group) pair the token authenticates plus its validity
// window, matching the triple ledger.TokenBlocklistEntry refuses against.
type tokenPayload struct {
	Subject        string    `json:"subject"`
	Group          string    `json:"group"`
	IssuedAt       time.Time `json:"issued_at"`
	ExpirationTime time.Time `json:"expiration_time"`
}

// IssueToken mints an opaque bearer token for (subject, group), valid
// until expiration, authenticated with an HMAC-SHA3-256 tag over the
// payload under the server's signing key. The payload itself is not
// encrypted.
func (s *Server) IssueToken(subject, group string, expiration time.Time, now time.Time) (string, error) {
	payload := tokenPayload{Subject: subject, Group: group, IssuedAt: now, ExpirationTime: expiration}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", peperr.Wrap(peperr.KindInternal, err, "am: encoding token payload")
	}

	mac := hmac.New(sha3.New256, s.tokenKey())
	mac.Write(body)
	tag := mac.Sum(nil)

	raw, err := json.Marshal(struct {
		Body []byte `json:"body"`
		Tag  []byte `json:"tag"`
	}{Body: body, Tag: tag})
	if err != nil {
		return "", peperr.Wrap(peperr.KindInternal, err, "am: encoding token envelope")
	}
	return base64.URLEncoding.EncodeToString(raw), nil
}

// AuthenticateToken verifies token's HMAC tag, checks its validity
// window, and rejects it if a matching blocklist entry is current,
// returning the subject/group it authenticates.
func (s *Server) AuthenticateToken(token string, now time.Time) (subject, group string, err error) {
	raw, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return "", "", peperr.Wrap(peperr.KindInvalidEncoding, err, "am: decoding token")
	}
	var envelope struct {
		Body []byte `json:"body"`
		Tag  []byte `json:"tag"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return "", "", peperr.Wrap(peperr.KindInvalidEncoding, err, "am: decoding token envelope")
	}

	mac := hmac.New(sha3.New256, s.tokenKey())
	mac.Write(envelope.Body)
	want := mac.Sum(nil)
	if subtle.ConstantTimeCompare(want, envelope.Tag) != 1 {
		return "", "", peperr.New(peperr.KindSignatureInvalid, "am: invalid token tag")
	}

	var payload tokenPayload
	if err := json.Unmarshal(envelope.Body, &payload); err != nil {
		return "", "", peperr.Wrap(peperr.KindInvalidEncoding, err, "am: decoding token payload")
	}
	if now.After(payload.ExpirationTime) {
		return "", "", peperr.New(peperr.KindTicketExpired, "am: token expired")
	}
	if s.State.IsTokenBlocklisted(payload.Subject, payload.Group, payload.IssuedAt, now) {
		return "", "", peperr.AccessDenied(payload.Group, "authenticate", payload.Subject)
	}
	return payload.Subject, payload.Group, nil
}

// TokenID decodes token and returns the identifier under which it would
// appear in a TokenBlocklistListRequest response: the same
// subject\x00group\x00issuedAt triple BlocklistToken and
// RemoveTokenBlocklistEntry accept, so a caller holding a live token and
// a caller listing the blocklist always name it the same way.
func (s *Server) TokenID(token string) (string, error) {
	payload, err := s.decodeTokenUnchecked(token)
	if err != nil {
		return "", err
	}
	return ledger.TokenBlocklistEntry{Subject: payload.Subject, Group: payload.Group, IssuedAt: payload.IssuedAt}.NaturalKey(), nil
}

// BlocklistToken refuses the token named by tokenID (as returned by TokenID
// or by a TokenBlocklistListRequest) for the remainder of its validity
// window. Requires admin privileges, matching every other mutation in
// admin.go.
func (s *Server) BlocklistToken(requester ticket.Requester, tokenID, reason string, now time.Time) error {
	if err := s.requireAdmin(requester); err != nil {
		return err
	}
	subject, group, issuedAt, err := parseTokenID(tokenID)
	if err != nil {
		return err
	}
	_, err = s.State.BlocklistToken(subject, group, issuedAt, reason, now)
	return err
}

// RemoveTokenBlocklistEntry lifts a previously created blocklist entry,
// restoring acceptance of the token tokenID names.
func (s *Server) RemoveTokenBlocklistEntry(requester ticket.Requester, tokenID string, now time.Time) error {
	if err := s.requireAdmin(requester); err != nil {
		return err
	}
	subject, group, issuedAt, err := parseTokenID(tokenID)
	if err != nil {
		return err
	}
	return s.State.RemoveBlocklistEntry(subject, group, issuedAt, now)
}

// parseTokenID splits a subject\x00group\x00issuedAt identifier back into
// its fields, the inverse of ledger.TokenBlocklistEntry.NaturalKey.
func parseTokenID(tokenID string) (subject, group string, issuedAt time.Time, err error) {
	parts := strings.Split(tokenID, "\x00")
	if len(parts) != 3 {
		return "", "", time.Time{}, peperr.New(peperr.KindInvalidEncoding, "am: malformed token id")
	}
	issuedAt, err = time.Parse(time.RFC3339Nano, parts[2])
	if err != nil {
		return "", "", time.Time{}, peperr.Wrap(peperr.KindInvalidEncoding, err, "am: decoding token id timestamp")
	}
	return parts[0], parts[1], issuedAt, nil
}

// decodeTokenUnchecked recovers a token's payload for blocklist bookkeeping
// without rejecting it for expiry or an existing blocklist entry, since an
// admin must be able to blocklist or unblock a token regardless of either.
func (s *Server) decodeTokenUnchecked(token string) (tokenPayload, error) {
	raw, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return tokenPayload{}, peperr.Wrap(peperr.KindInvalidEncoding, err, "am: decoding token")
	}
	var envelope struct {
		Body []byte `json:"body"`
		Tag  []byte `json:"tag"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return tokenPayload{}, peperr.Wrap(peperr.KindInvalidEncoding, err, "am: decoding token envelope")
	}
	mac := hmac.New(sha3.New256, s.tokenKey())
	mac.Write(envelope.Body)
	if subtle.ConstantTimeCompare(mac.Sum(nil), envelope.Tag) != 1 {
		return tokenPayload{}, peperr.New(peperr.KindSignatureInvalid, "am: invalid token tag")
	}
	var payload tokenPayload
	if err := json.Unmarshal(envelope.Body, &payload); err != nil {
		return tokenPayload{}, peperr.Wrap(peperr.KindInvalidEncoding, err, "am: decoding token payload")
	}
	return payload, nil
}

func (s *Server) tokenKey() []byte {
	if len(s.TokenSigningKey) > 0 {
		return s.TokenSigningKey
	}
	return []byte("pep-asa-token-v1-default")
}
