// Package masterkey generates master secrets and prints workspace key
// fingerprints for deployment checks.
package masterkey

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/louisbranch/socialconnect/internal/services/connect/keyring"
)

const envName = "SOCIALCONNECT_MASTER_SECRET"

// Config holds configuration for master key generation.
type Config struct {
	Bytes int
	// Fingerprint prints the derived key fingerprint of this workspace
	// instead of generating a secret.
	Fingerprint string
	Secret      string
}

// ParseConfig parses flags into a Config. The secret for -fingerprint is
// read from SOCIALCONNECT_MASTER_SECRET through lookup.
func ParseConfig(fs *flag.FlagSet, args []string, lookup func(string) (string, bool)) (Config, error) {
	cfg := Config{Bytes: 32}
	fs.IntVar(&cfg.Bytes, "bytes", cfg.Bytes, "number of random bytes (default: 32)")
	fs.StringVar(&cfg.Fingerprint, "fingerprint", "", "workspace id whose derived key fingerprint to print")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	if lookup != nil {
		cfg.Secret, _ = lookup(envName)
	}
	return cfg, nil
}

// Run generates the key, or the fingerprint, and writes it to out.
func Run(cfg Config, out io.Writer, reader io.Reader) error {
	if out == nil {
		return errors.New("output is required")
	}
	if strings.TrimSpace(cfg.Fingerprint) != "" {
		return fingerprint(cfg, out)
	}
	if cfg.Bytes < keyring.KeyLength {
		return fmt.Errorf("bytes must be at least %d", keyring.KeyLength)
	}
	if reader == nil {
		reader = rand.Reader
	}

	buf := make([]byte, cfg.Bytes)
	if _, err := io.ReadFull(reader, buf); err != nil {
		return fmt.Errorf("generate random bytes: %w", err)
	}
	_, err := fmt.Fprintf(out, "%s=%s\n", envName, hex.EncodeToString(buf))
	return err
}

func fingerprint(cfg Config, out io.Writer) error {
	workspaceID := strings.TrimSpace(cfg.Fingerprint)
	key, err := keyring.DeriveWorkspaceKey(cfg.Secret, workspaceID)
	if err != nil {
		return err
	}
	sum := sha256.Sum256(key)
	_, err = fmt.Fprintf(out, "%s %s\n", workspaceID, hex.EncodeToString(sum[:8]))
	return err
}
