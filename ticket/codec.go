package ticket

import (
	"encoding/json"
	"time"

	"github.com/pep-constellation/pep-core/elgamal"
	"github.com/pep-constellation/pep-core/group"
	"github.com/pep-constellation/pep-core/peperr"
	"github.com/pep-constellation/pep-core/pseudonym"
)

func pseudonymCiphertext(b, c *group.Point) pseudonym.Polymorphic {
	return elgamal.Ciphertext{B: b, C: c}
}

// wirePseudonymEntry is PseudonymEntry with group elements as their
// canonical byte encodings, the JSON-safe shape Marshal/Unmarshal use.
type wirePseudonymEntry struct {
	B                  []byte `json:"b"`
	C                  []byte `json:"c"`
	LocalAtAM          []byte `json:"local_at_am,omitempty"`
	LocalAtSF          []byte `json:"local_at_sf,omitempty"`
	LocalAtAccessGroup []byte `json:"local_at_access_group,omitempty"`
}

type wireTicket struct {
	Requester  Requester            `json:"requester"`
	Columns    []string             `json:"columns"`
	Modes      []Mode               `json:"modes"`
	Pseudonyms []wirePseudonymEntry `json:"pseudonyms"`
	IssuedAt   time.Time            `json:"issued_at"`
	Validity   time.Duration        `json:"validity"`
	Signatures [][]byte             `json:"signatures"`
}

// Marshal serialises a ticket for transport (e.g. as a wire.TicketBytes
// payload), encoding every group element as its canonical byte form so
// the signature chain's canonicalBytes is reproducible on the receiving
// end.
func Marshal(t Ticket2) ([]byte, error) {
	w := wireTicket{
		Requester:  t.Requester,
		Columns:    t.Columns,
		Modes:      t.Modes,
		IssuedAt:   t.IssuedAt,
		Validity:   t.Validity,
		Signatures: t.Signatures,
	}
	for _, pe := range t.Pseudonyms {
		wpe := wirePseudonymEntry{
			B: pe.Polymorphic.B.Pack(),
			C: pe.Polymorphic.C.Pack(),
		}
		if pe.LocalAtAM != nil {
			wpe.LocalAtAM = pe.LocalAtAM.Pack()
		}
		if pe.LocalAtSF != nil {
			wpe.LocalAtSF = pe.LocalAtSF.Pack()
		}
		if pe.LocalAtAccessGroup != nil {
			wpe.LocalAtAccessGroup = pe.LocalAtAccessGroup.Pack()
		}
		w.Pseudonyms = append(w.Pseudonyms, wpe)
	}
	return json.Marshal(w)
}

// Unmarshal parses a ticket previously produced by Marshal.
func Unmarshal(data []byte) (Ticket2, error) {
	var w wireTicket
	if err := json.Unmarshal(data, &w); err != nil {
		return Ticket2{}, peperr.Wrap(peperr.KindInvalidEncoding, err, "ticket: malformed wire ticket")
	}

	t := Ticket2{
		Requester:  w.Requester,
		Columns:    w.Columns,
		Modes:      w.Modes,
		IssuedAt:   w.IssuedAt,
		Validity:   w.Validity,
		Signatures: w.Signatures,
	}
	for _, wpe := range w.Pseudonyms {
		b, err := group.Unpack(wpe.B)
		if err != nil {
			return Ticket2{}, peperr.Wrap(peperr.KindInvalidEncoding, err, "ticket: malformed pseudonym B")
		}
		c, err := group.Unpack(wpe.C)
		if err != nil {
			return Ticket2{}, peperr.Wrap(peperr.KindInvalidEncoding, err, "ticket: malformed pseudonym C")
		}
		pe := PseudonymEntry{Polymorphic: pseudonymCiphertext(b, c)}
		if len(wpe.LocalAtAM) > 0 {
			p, err := group.Unpack(wpe.LocalAtAM)
			if err != nil {
				return Ticket2{}, peperr.Wrap(peperr.KindInvalidEncoding, err, "ticket: malformed LocalAtAM")
			}
			pe.LocalAtAM = p
		}
		if len(wpe.LocalAtSF) > 0 {
			p, err := group.Unpack(wpe.LocalAtSF)
			if err != nil {
				return Ticket2{}, peperr.Wrap(peperr.KindInvalidEncoding, err, "ticket: malformed LocalAtSF")
			}
			pe.LocalAtSF = p
		}
		if len(wpe.LocalAtAccessGroup) > 0 {
			p, err := group.Unpack(wpe.LocalAtAccessGroup)
			if err != nil {
				return Ticket2{}, peperr.Wrap(peperr.KindInvalidEncoding, err, "ticket: malformed LocalAtAccessGroup")
			}
			pe.LocalAtAccessGroup = p
		}
		t.Pseudonyms = append(t.Pseudonyms, pe)
	}
	return t, nil
}
