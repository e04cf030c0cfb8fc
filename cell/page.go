package cell

import (
	"crypto/rand"
	"encoding/binary"
	"sort"

	"github.com/pep-constellation/pep-core/pepcrypto"
	"github.com/pep-constellation/pep-core/peperr"
	"github.com/zeebo/blake3"
	"golang.org/x/crypto/chacha20poly1305"
)

// InlinePageThreshold is the default boundary above which a payload is
// chunked into multiple pages rather than stored as a single inline page.
const InlinePageThreshold = 64 * 1024

// pageSize bounds each chunk when a payload exceeds InlinePageThreshold.
const pageSize = InlinePageThreshold

// Page is one AEAD-encrypted chunk of a cell's payload.
type Page struct {
	Nonce      []byte
	Ciphertext []byte // includes the AEAD tag, matching chacha20poly1305.Seal's output
	PageNumber int
	CellIndex  string
}

func newBlake3() *blake3.Hasher {
	return blake3.New()
}

// aeadKey derives the per-page key: HKDF(K_cell, info = column || LP@SF ||
// i || bound_extras_digest).
func aeadKey(cellKey Key, column string, lpAtSF []byte, pageIndex int, boundExtrasDigest []byte) []byte {
	info := make([]byte, 0, len(column)+len(lpAtSF)+8+len(boundExtrasDigest))
	info = append(info, []byte(column)...)
	info = append(info, lpAtSF...)
	idxBuf := make([]byte, 8)
	binary.BigEndian.PutUint64(idxBuf, uint64(pageIndex))
	info = append(info, idxBuf...)
	info = append(info, boundExtrasDigest...)

	return pepcrypto.DeriveKey(cellKey.Point.Pack(), nil, info, chacha20poly1305.KeySize)
}

// EncryptPayload splits payload into pages (a single page if it is at or
// below InlinePageThreshold) and seals each with an independently derived
// AEAD key.
func EncryptPayload(payload []byte, cellKey Key, column string, lpAtSF []byte, cellIndex string, meta Metadata) ([]Page, error) {
	digest := meta.BoundExtrasDigest()

	var chunks [][]byte
	if len(payload) <= InlinePageThreshold {
		chunks = [][]byte{payload}
	} else {
		for off := 0; off < len(payload); off += pageSize {
			end := off + pageSize
			if end > len(payload) {
				end = len(payload)
			}
			chunks = append(chunks, payload[off:end])
		}
	}

	pages := make([]Page, 0, len(chunks))
	for i, chunk := range chunks {
		key := aeadKey(cellKey, column, lpAtSF, i, digest)
		aead, err := chacha20poly1305.New(key)
		if err != nil {
			return nil, peperr.Wrap(peperr.KindInternal, err, "cell: could not construct AEAD cipher")
		}
		nonce := make([]byte, chacha20poly1305.NonceSize)
		if _, err := rand.Read(nonce); err != nil {
			return nil, peperr.Wrap(peperr.KindInternal, err, "cell: could not read nonce entropy")
		}
		ct := aead.Seal(nil, nonce, chunk, nil)
		pages = append(pages, Page{
			Nonce:      nonce,
			Ciphertext: ct,
			PageNumber: i,
			CellIndex:  cellIndex,
		})
	}
	return pages, nil
}

// DecryptPayload reverses EncryptPayload, concatenating each page's
// plaintext in PageNumber order. Any AEAD failure surfaces as
// peperr.PayloadCorrupted; payload is never silently truncated.
func DecryptPayload(pages []Page, cellKey Key, column string, lpAtSF []byte, meta Metadata) ([]byte, error) {
	digest := meta.BoundExtrasDigest()

	ordered := append([]Page(nil), pages...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].PageNumber < ordered[j].PageNumber })

	var out []byte
	for _, p := range ordered {
		key := aeadKey(cellKey, column, lpAtSF, p.PageNumber, digest)
		aead, err := chacha20poly1305.New(key)
		if err != nil {
			return nil, peperr.Wrap(peperr.KindInternal, err, "cell: could not construct AEAD cipher")
		}
		pt, err := aead.Open(nil, p.Nonce, p.Ciphertext, nil)
		if err != nil {
			return nil, peperr.Wrap(peperr.KindPayloadCorrupted, err, "cell: page failed AEAD verification")
		}
		out = append(out, pt...)
	}
	return out, nil
}

// ETag hashes the concatenated ciphertext pages in order, the content hash
// the page store must return on a successful write.
func ETag(pages []Page) []byte {
	h := newBlake3()
	for _, p := range pages {
		h.Write(p.Ciphertext)
	}
	return h.Sum(nil)
}
