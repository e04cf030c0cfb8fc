package partyconfig

import (
	"encoding/hex"
	"testing"

	"github.com/pep-constellation/pep-core/group"
	"github.com/pep-constellation/pep-core/pseudonym"
	"github.com/stretchr/testify/require"
)

func TestParseRoundTrip(t *testing.T) {
	s := group.RandomScalar()
	k := group.RandomScalar()

	doc := []byte(`
role: access-manager
listen_addr: "0.0.0.0:9001"
tls:
  cert_file: /etc/pep/am.crt
  key_file: /etc/pep/am.key
  client_ca_file: /etc/pep/ca.crt
ticket_validity: 5m
log_path: /var/log/pep/am.log
secret_shares:
  - party: TS
    reshuffle_secret: "` + hex.EncodeToString(s.Encode()) + `"
    rekey_secret: "` + hex.EncodeToString(k.Encode()) + `"
`)

	cfg, err := Parse(doc)
	require.NoError(t, err)
	require.Equal(t, RoleAccessManager, cfg.Role)
	require.Equal(t, "0.0.0.0:9001", cfg.ListenAddr)
	require.Equal(t, "/etc/pep/ca.crt", cfg.TLS.ClientCAFile)

	require.Contains(t, cfg.Shares, pseudonym.Party("TS"))
	hop := cfg.Shares["TS"]
	require.True(t, hop.S.Equal(s))
	require.True(t, hop.K.Equal(k))
}

func TestParseRejectsMalformedDuration(t *testing.T) {
	doc := []byte(`
role: key-server
ticket_validity: "not-a-duration"
`)
	_, err := Parse(doc)
	require.Error(t, err)
}

func TestParseRejectsMalformedSecret(t *testing.T) {
	doc := []byte(`
role: key-server
ticket_validity: 1m
secret_shares:
  - party: AM
    reshuffle_secret: "zz-not-hex"
    rekey_secret: "zz-not-hex"
`)
	_, err := Parse(doc)
	require.Error(t, err)
}
