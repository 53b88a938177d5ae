package masterkey

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"strings"
	"testing"

	"github.com/louisbranch/socialconnect/internal/services/connect/keyring"
)

func TestParseConfigDefaults(t *testing.T) {
	fs := flag.NewFlagSet("masterkey", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, nil, nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Bytes != 32 {
		t.Fatalf("expected default bytes 32, got %d", cfg.Bytes)
	}
}

func TestParseConfigOverride(t *testing.T) {
	fs := flag.NewFlagSet("masterkey", flag.ContinueOnError)
	lookup := func(key string) (string, bool) {
		if key == "SOCIALCONNECT_MASTER_SECRET" {
			return "from-env", true
		}
		return "", false
	}
	cfg, err := ParseConfig(fs, []string{"-bytes", "48", "-fingerprint", "ws-1"}, lookup)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Bytes != 48 || cfg.Fingerprint != "ws-1" || cfg.Secret != "from-env" {
		t.Fatalf("unexpected config %+v", cfg)
	}
}

func TestRunRejectsShortKeys(t *testing.T) {
	if err := Run(Config{Bytes: 16}, &bytes.Buffer{}, bytes.NewReader(make([]byte, 16))); err == nil {
		t.Fatal("expected error for keys shorter than 32 bytes")
	}
}

func TestRunWritesHex(t *testing.T) {
	buf := &bytes.Buffer{}
	reader := bytes.NewReader(bytes.Repeat([]byte{0xab}, 32))
	if err := Run(Config{Bytes: 32}, buf, reader); err != nil {
		t.Fatalf("run: %v", err)
	}
	want := "SOCIALCONNECT_MASTER_SECRET=" + strings.Repeat("ab", 32)
	if got := strings.TrimSpace(buf.String()); got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestRunDefaultReader(t *testing.T) {
	buf := &bytes.Buffer{}
	if err := Run(Config{Bytes: 32}, buf, nil); err != nil {
		t.Fatalf("run: %v", err)
	}
	got := strings.TrimSpace(buf.String())
	const prefix = "SOCIALCONNECT_MASTER_SECRET="
	if !strings.HasPrefix(got, prefix) {
		t.Fatalf("expected env prefix, got %q", got)
	}
	if len(strings.TrimPrefix(got, prefix)) != 64 {
		t.Fatalf("expected 64 hex chars, got %q", got)
	}
}

func TestRunNilOutput(t *testing.T) {
	if err := Run(Config{Bytes: 32}, nil, nil); err == nil {
		t.Fatal("expected error for nil output")
	}
}

type errReader struct{}

func (errReader) Read([]byte) (int, error) { return 0, fmt.Errorf("read error") }

func TestRunReaderError(t *testing.T) {
	if err := Run(Config{Bytes: 32}, &bytes.Buffer{}, errReader{}); err == nil {
		t.Fatal("expected error from failing reader")
	}
}

func TestRunFingerprint(t *testing.T) {
	buf := &bytes.Buffer{}
	if err := Run(Config{Fingerprint: " ws-1 ", Secret: "master"}, buf, nil); err != nil {
		t.Fatalf("run: %v", err)
	}
	key, err := keyring.DeriveWorkspaceKey("master", "ws-1")
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	sum := sha256.Sum256(key)
	want := "ws-1 " + hex.EncodeToString(sum[:8])
	if got := strings.TrimSpace(buf.String()); got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestRunFingerprintRequiresSecret(t *testing.T) {
	err := Run(Config{Fingerprint: "ws-1"}, &bytes.Buffer{}, nil)
	if !errors.Is(err, keyring.ErrMasterSecretMissing) {
		t.Fatalf("expected master secret missing, got %v", err)
	}
}

func TestParseConfigBadArgs(t *testing.T) {
	fs := flag.NewFlagSet("masterkey", flag.ContinueOnError)
	fs.SetOutput(&bytes.Buffer{})
	if _, err := ParseConfig(fs, []string{"-invalid"}, nil); err == nil {
		t.Fatal("expected error for unknown flag")
	}
}
