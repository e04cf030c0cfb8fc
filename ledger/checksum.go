package ledger

import (
	"encoding/binary"

	"github.com/zeebo/blake3"
)

// canonicalRecord is satisfied by every record family via canonicalFields,
// defined alongside header()/withHeader() in records_header.go.
type canonicalRecord[T any] interface {
	recordAccessor[T]
	canonicalFields() []byte
}

// Checksum is a 256-bit running digest over a record family:
//
//	chk_n = chk_{n-1} XOR H(nonce_n || canonical_fields_n || tombstone_n)
//
// using blake3 as H.
type Checksum [32]byte

// Compute returns the checksum over every row in log with Seqno <=
// maxCheckpoint, plus the checkpoint actually used (the highest seqno
// folded in). Passing maxCheckpoint == 0 computes over the whole log.
func Compute[T canonicalRecord[T]](log *Log[T], maxCheckpoint uint64) (Checksum, uint64) {
	rows := log.All()
	if maxCheckpoint == 0 {
		maxCheckpoint = log.Len()
	}

	var chk Checksum
	var checkpoint uint64
	for _, row := range rows {
		h := row.header()
		if h.Seqno > maxCheckpoint {
			continue
		}
		digest := recordDigest(h, row.canonicalFields())
		xorInto(&chk, digest)
		if h.Seqno > checkpoint {
			checkpoint = h.Seqno
		}
	}
	return chk, checkpoint
}

func recordDigest(h Header, fields []byte) [32]byte {
	hasher := blake3.New()
	hasher.Write(h.ChecksumNonce[:])
	hasher.Write(fields)
	var tomb byte
	if h.Tombstone {
		tomb = 1
	}
	hasher.Write([]byte{tomb})

	var out [32]byte
	copy(out[:], hasher.Sum(nil))
	return out
}

func xorInto(dst *Checksum, src [32]byte) {
	for i := range dst {
		dst[i] ^= src[i]
	}
}

// Bytes returns the checksum's raw 32 bytes.
func (c Checksum) Bytes() []byte {
	return c[:]
}

// Stamped returns the checksum's bytes followed by its checkpoint,
// big-endian encoded, for exchanging a checksum over the wire alongside
// the checkpoint it was computed at.
func (c Checksum) Stamped(checkpoint uint64) []byte {
	return append(append([]byte{}, c[:]...), encodeUint64(checkpoint)...)
}

func encodeUint64(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}
