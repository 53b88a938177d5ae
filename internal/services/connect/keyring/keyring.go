// Package keyring derives per-workspace encryption keys from the service
// master secret.
package keyring

import (
	"crypto/sha256"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	apperrors "github.com/louisbranch/socialconnect/internal/platform/errors"
	"golang.org/x/crypto/pbkdf2"
)

const (
	// Iterations is the PBKDF2 work factor.
	Iterations = 100000
	// KeyLength is the derived key length in bytes.
	KeyLength = 32
)

var (
	// ErrMasterSecretMissing reports that no master secret was configured.
	ErrMasterSecretMissing = apperrors.New(apperrors.CodeConfigMasterSecretMissing, "master secret is not configured")
	// ErrWorkspaceIDRequired reports an empty workspace id.
	ErrWorkspaceIDRequired = apperrors.New(apperrors.CodeWorkspaceIDEmpty, "workspace id is required")
)

// Option configures a Deriver.
type Option func(*Deriver)

// WithCache keeps up to size derived keys for ttl. A non-positive size
// disables caching.
func WithCache(size int, ttl time.Duration) Option {
	return func(d *Deriver) {
		if size <= 0 {
			d.cache = nil
			return
		}
		d.cache = lru.NewLRU[string, []byte](size, nil, ttl)
	}
}

// Deriver derives workspace keys. It is safe for concurrent use.
type Deriver struct {
	masterSecret []byte
	cache        *lru.LRU[string, []byte]
}

// NewDeriver validates masterSecret and applies opts.
func NewDeriver(masterSecret string, opts ...Option) (*Deriver, error) {
	if strings.TrimSpace(masterSecret) == "" {
		return nil, ErrMasterSecretMissing
	}
	d := &Deriver{masterSecret: []byte(masterSecret)}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// WorkspaceKey returns the 32-byte key for workspaceID. Callers own the
// returned slice.
func (d *Deriver) WorkspaceKey(workspaceID string) ([]byte, error) {
	if d == nil || len(d.masterSecret) == 0 {
		return nil, ErrMasterSecretMissing
	}
	if workspaceID == "" {
		return nil, ErrWorkspaceIDRequired
	}
	if d.cache != nil {
		if key, ok := d.cache.Get(workspaceID); ok {
			return clone(key), nil
		}
	}
	key := pbkdf2.Key(d.masterSecret, []byte(workspaceID), Iterations, KeyLength, sha256.New)
	if d.cache != nil {
		d.cache.Add(workspaceID, clone(key))
	}
	return key, nil
}

// CachedKeys reports how many workspace keys are currently cached.
func (d *Deriver) CachedKeys() int {
	if d == nil || d.cache == nil {
		return 0
	}
	return d.cache.Len()
}

// Forget drops workspaceID from the cache.
func (d *Deriver) Forget(workspaceID string) {
	if d == nil || d.cache == nil {
		return
	}
	d.cache.Remove(workspaceID)
}

// DeriveWorkspaceKey derives a key without caching.
func DeriveWorkspaceKey(masterSecret, workspaceID string) ([]byte, error) {
	d, err := NewDeriver(masterSecret)
	if err != nil {
		return nil, err
	}
	return d.WorkspaceKey(workspaceID)
}

func clone(key []byte) []byte {
	out := make([]byte, len(key))
	copy(out, key)
	return out
}
