// Package config is the collaborator-level TOML config surface spec.md
// §6 describes: `<home>/.bifrost/config.toml` holding RPC URLs and API
// tokens for the signature-resolution and cache collaborators. The
// core never reads this file itself (spec.md §1: "the on-disk signature
// cache ... is an external collaborator"); only cmd/heimdall and the
// signatures/cache collaborators consult it.
package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config is the decoded shape of config.toml.
type Config struct {
	Signatures SignaturesConfig `toml:"signatures"`
	Cache      CacheConfig      `toml:"cache"`
}

// SignaturesConfig points at the 4byte-directory-style HTTP API used to
// resolve function/event/error names, per spec.md §6.
type SignaturesConfig struct {
	// FourByteURL is the base URL queried as
	// "<FourByteURL>?hex_signature=0x...".
	FourByteURL string `toml:"four_byte_url"`
	APIToken    string `toml:"api_token"`
}

// CacheConfig locates the on-disk signature/result cache, per spec.md
// §6's "<home>/.bifrost/cache/<key>.bin".
type CacheConfig struct {
	Dir        string `toml:"dir"`
	MaxEntries int    `toml:"max_entries"`
}

// DefaultDir returns "<home>/.bifrost", creating nothing itself.
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".bifrost"), nil
}

// DefaultPath returns "<home>/.bifrost/config.toml".
func DefaultPath() (string, error) {
	dir, err := DefaultDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// Load decodes path into a Config. A missing file is not an error: it
// returns the zero Config, since every field there has a sane absent
// meaning (no resolver configured, default cache location).
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDefault loads the config at DefaultPath().
func LoadDefault() (*Config, error) {
	path, err := DefaultPath()
	if err != nil {
		return nil, err
	}
	return Load(path)
}
