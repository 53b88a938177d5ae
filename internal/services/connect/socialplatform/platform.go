// Package socialplatform lists the supported social platforms and builds
// their OAuth2 authorization URLs.
package socialplatform

import (
	"fmt"
	"strings"

	apperrors "github.com/louisbranch/socialconnect/internal/platform/errors"
)

// Platform identifies one connectable social network.
type Platform string

const (
	Twitter   Platform = "twitter"
	LinkedIn  Platform = "linkedin"
	Facebook  Platform = "facebook"
	Instagram Platform = "instagram"
)

var all = []Platform{Twitter, LinkedIn, Facebook, Instagram}

// All returns every supported platform in display order.
func All() []Platform {
	out := make([]Platform, len(all))
	copy(out, all)
	return out
}

// Parse normalizes and validates a platform name.
func Parse(value string) (Platform, error) {
	candidate := Platform(strings.ToLower(strings.TrimSpace(value)))
	if candidate.Valid() {
		return candidate, nil
	}
	return "", apperrors.WithMetadata(apperrors.CodePlatformInvalid, fmt.Sprintf("unsupported platform %q", value), map[string]string{"platform": value})
}

// Valid reports whether p is a supported platform.
func (p Platform) Valid() bool {
	for _, candidate := range all {
		if p == candidate {
			return true
		}
	}
	return false
}

func (p Platform) String() string {
	return string(p)
}
