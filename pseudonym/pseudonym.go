// Package pseudonym implements the multi-party transcryption protocol that
// turns a client-supplied Polymorphic Pseudonym into a deterministic
// Local Pseudonym at a specific party.
package pseudonym

import (
	"sync"

	"github.com/pep-constellation/pep-core/elgamal"
	"github.com/pep-constellation/pep-core/group"
	"github.com/pep-constellation/pep-core/peperr"
)

// Party identifies one of the four fixed PEP parties.
type Party string

const (
	AccessManager  Party = "AM"
	Transcryptor   Party = "TS"
	StorageFacility Party = "SF"
	KeyServer      Party = "KS"
)

// Polymorphic is an ElGamal encryption of an identifier's point under the
// master public key, opaque to any single party until transcrypted.
type Polymorphic = elgamal.Ciphertext

// Pseudonymize builds a fresh Polymorphic Pseudonym for identifier under
// the master public key masterY: P_id = Hash(identifier)*G.
func Pseudonymize(identifier []byte, masterY *group.Point) Polymorphic {
	pid := group.HashToPoint(identifier)
	return elgamal.Encrypt(pid, masterY)
}

// Local is a deterministic, party-opaque representation of a participant.
type Local struct {
	Party Party
	Point *group.Point
}

// Equal reports whether two Local pseudonyms are the same party and point.
func (l Local) Equal(other Local) bool {
	return l.Party == other.Party && l.Point.Equal(other.Point)
}

// Hop is one step of a transcryption chain: the reshuffle secret s and
// rekey secret k shared between a source and target party. The key used
// to decrypt once the chain completes is Chain.TargetKey.
type Hop struct {
	Party Party
	S, K  *group.Scalar
}

// Chain is the ordered list of hops a ciphertext is routed through to
// reach a target party, plus that party's private key for the final
// decryption.
type Chain struct {
	MasterY   *group.Point
	Hops      []Hop
	TargetKey *group.Scalar // private key share of the final hop's party
}

// TranscryptTo routes pp through chain's hops, applying RSK at each one,
// and decrypts the result at the final party to obtain that party's Local
// Pseudonym for the identifier pp encodes.
//
// Each hop validates only that it has a non-nil (S, K) pair; ticket-level
// authorisation (confirming a hop is requested at most once) is checked by
// the caller, not here.
func TranscryptTo(pp Polymorphic, chain Chain) (Local, error) {
	current := pp
	currentY := chain.MasterY

	for _, hop := range chain.Hops {
		if hop.S == nil || hop.K == nil {
			return Local{}, peperr.New(peperr.KindTranscryptionRefused, "hop missing reshuffle/rekey secret")
		}
		r := group.RandomScalar()
		next, err := elgamal.RSK(current, currentY, hop.S, hop.K, r)
		if err != nil {
			return Local{}, peperr.Wrap(peperr.KindTranscryptionRefused, err, "rsk hop failed")
		}
		current = next
		currentY = currentY.Mult(hop.K)
	}

	if len(chain.Hops) == 0 {
		return Local{}, peperr.New(peperr.KindTranscryptionRefused, "empty transcryption chain")
	}
	finalParty := chain.Hops[len(chain.Hops)-1].Party
	plain := elgamal.Decrypt(current, chain.TargetKey)
	return Local{Party: finalParty, Point: plain}, nil
}

// TranscryptKey parameterises the same hop-walk as TranscryptTo but for an
// EncryptedKey, additionally scaling by a participant-specific and a
// column-specific blinding factor so that different participants and
// different columns derive different per-cell keys even when routed
// through the same chain.
func TranscryptKey(ek Polymorphic, chain Chain, participantBlind, columnBlind *group.Scalar) (elgamal.Ciphertext, error) {
	blinded := elgamal.Reshuffle(ek, participantBlind.Mul(columnBlind))
	current := blinded
	currentY := chain.MasterY

	for _, hop := range chain.Hops {
		if hop.S == nil || hop.K == nil {
			return elgamal.Ciphertext{}, peperr.New(peperr.KindTranscryptionRefused, "hop missing reshuffle/rekey secret")
		}
		r := group.RandomScalar()
		next, err := elgamal.RSK(current, currentY, hop.S, hop.K, r)
		if err != nil {
			return elgamal.Ciphertext{}, peperr.Wrap(peperr.KindTranscryptionRefused, err, "rsk hop failed")
		}
		current = next
		currentY = currentY.Mult(hop.K)
	}
	return current, nil
}

// cacheKey identifies a (party, identifier-point-encoding) pair.
type cacheKey struct {
	party   Party
	encoded string
}

// Cache is a process-wide, never-invalidated PP->LP@self cache: populated
// on first sight, read-mostly thereafter.
type Cache struct {
	mu    sync.RWMutex
	items map[cacheKey]Local
}

// NewCache constructs an empty Cache.
func NewCache() *Cache {
	return &Cache{items: make(map[cacheKey]Local)}
}

// GetOrCompute returns the cached Local pseudonym for (party, pp) if
// present, otherwise computes it via compute, stores it, and returns it.
func (c *Cache) GetOrCompute(party Party, pp Polymorphic, compute func() (Local, error)) (Local, error) {
	key := cacheKey{party: party, encoded: string(pp.B.Pack()) + string(pp.C.Pack())}

	c.mu.RLock()
	if lp, ok := c.items[key]; ok {
		c.mu.RUnlock()
		return lp, nil
	}
	c.mu.RUnlock()

	lp, err := compute()
	if err != nil {
		return Local{}, err
	}

	c.mu.Lock()
	c.items[key] = lp
	c.mu.Unlock()
	return lp, nil
}
