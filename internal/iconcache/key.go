package iconcache

import (
	"fmt"
	"path"
)

// knownPlatforms is the fixed set of platforms the dashboard tracks.
var knownPlatforms = map[string]bool{
	"steam":    true,
	"blizzard": true,
	"epic":     true,
	"origin":   true,
	"riot":     true,
	"wsus":     true,
	"gog":      true,
	"uplay":    true,
}

// Key is a canonical storage key derived from (platform, identifier).
// It is a relative path component of the form "platform/identifier".
type Key string

// Platform returns the platform half of the key.
func (k Key) Platform() string {
	return path.Dir(string(k))
}

// Identifier returns the identifier half of the key.
func (k Key) Identifier() string {
	return path.Base(string(k))
}

// ResolveKey maps a (platform, identifier) pair to its storage key.
// Deterministic and injective: platform names never contain '/', and the
// identifier charset excludes '/', so distinct pairs never collide.
func ResolveKey(platform, identifier string) (Key, error) {
	if !knownPlatforms[platform] {
		return "", fmt.Errorf("%w: %q", ErrInvalidPlatform, platform)
	}
	if identifier == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidIdentifier)
	}
	if identifier == "." || identifier == ".." {
		return "", fmt.Errorf("%w: %q", ErrInvalidIdentifier, identifier)
	}
	for _, r := range identifier {
		if !safeIdentifierRune(r) {
			return "", fmt.Errorf("%w: %q contains %q", ErrInvalidIdentifier, identifier, r)
		}
	}
	return Key(platform + "/" + identifier), nil
}

func safeIdentifierRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z':
		return true
	case r >= 'A' && r <= 'Z':
		return true
	case r >= '0' && r <= '9':
		return true
	case r == '.' || r == '_' || r == '-':
		return true
	}
	return false
}
