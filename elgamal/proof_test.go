package elgamal

import (
	"testing"

	"github.com/pep-constellation/pep-core/group"
	"github.com/stretchr/testify/require"
)

func TestDecryptionProofRoundTrip(t *testing.T) {
	y := group.RandomScalar()
	Y := group.BaseMult(y)
	m := group.BaseMult(group.RandomScalar())

	c := Encrypt(m, Y)
	proof := BuildDecryptionProof(y, Y, c, m)

	require.NoError(t, VerifyDecryptionProof(Y, c, m, proof))
}

func TestDecryptionProofRejectsWrongMessage(t *testing.T) {
	y := group.RandomScalar()
	Y := group.BaseMult(y)
	m := group.BaseMult(group.RandomScalar())
	wrong := group.BaseMult(group.RandomScalar())

	c := Encrypt(m, Y)
	proof := BuildDecryptionProof(y, Y, c, m)

	require.Error(t, VerifyDecryptionProof(Y, c, wrong, proof))
}
