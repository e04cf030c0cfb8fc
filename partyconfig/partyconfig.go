// Package partyconfig loads the YAML configuration for a single PEP party
// (Access Manager, Transcryptor, Key Server or Storage Facility): its
// network/TLS material paths, ticket validity policy, and derived
// reshuffle/rekey secret shares.
package partyconfig

import (
	"encoding/hex"
	"os"
	"time"

	"github.com/pep-constellation/pep-core/group"
	"github.com/pep-constellation/pep-core/peperr"
	"github.com/pep-constellation/pep-core/pseudonym"
	"gopkg.in/yaml.v3"
)

// Role identifies which of the four parties a Config belongs to.
type Role string

const (
	RoleAccessManager   Role = "access-manager"
	RoleTranscryptor    Role = "transcryptor"
	RoleKeyServer       Role = "key-server"
	RoleStorageFacility Role = "storage-facility"
)

// SecretShare is one hop's reshuffle/rekey scalar pair, as they appear on
// disk: hex-encoded canonical scalar encodings.
type SecretShare struct {
	Party  string `yaml:"party"`
	S      string `yaml:"reshuffle_secret"`
	K      string `yaml:"rekey_secret"`
}

// TLSConfig names certificate/key paths. TLS construction itself is out of
// scope, since the transport is treated as already mutually authenticated;
// this only carries the paths through to whatever dials/listens.
type TLSConfig struct {
	CertFile   string `yaml:"cert_file"`
	KeyFile    string `yaml:"key_file"`
	ClientCAFile string `yaml:"client_ca_file"`
}

// raw is the on-disk YAML shape; Config is the resolved, typed form
// loaders hand to the rest of the module.
type raw struct {
	Role            string        `yaml:"role"`
	ListenAddr      string        `yaml:"listen_addr"`
	TLS             TLSConfig     `yaml:"tls"`
	TicketValidity  string        `yaml:"ticket_validity"`
	LogPath         string        `yaml:"log_path"`
	SecretShares    []SecretShare `yaml:"secret_shares"`
}

// Config is the fully parsed, typed configuration for one party process.
type Config struct {
	Role           Role
	ListenAddr     string
	TLS            TLSConfig
	TicketValidity time.Duration
	LogPath        string
	Shares         map[pseudonym.Party]pseudonym.Hop
}

// Load reads and parses a party's YAML config file at path.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, peperr.Wrap(peperr.KindInternal, err, "partyconfig: could not read config file")
	}
	return Parse(data)
}

// Parse decodes YAML bytes into a Config, resolving hex-encoded secret
// shares into group.Scalar values.
func Parse(data []byte) (Config, error) {
	var r raw
	if err := yaml.Unmarshal(data, &r); err != nil {
		return Config{}, peperr.Wrap(peperr.KindInternal, err, "partyconfig: malformed yaml")
	}

	validity, err := time.ParseDuration(r.TicketValidity)
	if err != nil {
		return Config{}, peperr.Wrap(peperr.KindInternal, err, "partyconfig: malformed ticket_validity")
	}

	shares := make(map[pseudonym.Party]pseudonym.Hop, len(r.SecretShares))
	for _, s := range r.SecretShares {
		sScalar, err := decodeHexScalar(s.S)
		if err != nil {
			return Config{}, peperr.Wrap(peperr.KindInvalidEncoding, err, "partyconfig: malformed reshuffle_secret for "+s.Party)
		}
		kScalar, err := decodeHexScalar(s.K)
		if err != nil {
			return Config{}, peperr.Wrap(peperr.KindInvalidEncoding, err, "partyconfig: malformed rekey_secret for "+s.Party)
		}
		party := pseudonym.Party(s.Party)
		shares[party] = pseudonym.Hop{Party: party, S: sScalar, K: kScalar}
	}

	return Config{
		Role:           Role(r.Role),
		ListenAddr:     r.ListenAddr,
		TLS:            r.TLS,
		TicketValidity: validity,
		LogPath:        r.LogPath,
		Shares:         shares,
	}, nil
}

func decodeHexScalar(hexStr string) (*group.Scalar, error) {
	b, err := hex.DecodeString(hexStr)
	if err != nil {
		return nil, err
	}
	return group.DecodeScalar(b)
}
