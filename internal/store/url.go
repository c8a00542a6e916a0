package store

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strings"
)

// NormalizeName turns a page name into its canonical key. URLs lose their
// query, fragment and trailing slash; other names are trimmed.
func NormalizeName(name string) string {
	name = strings.TrimSpace(name)
	u, err := url.Parse(name)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return cleanName(name)
	}

	u.RawQuery = ""
	u.Fragment = ""
	normalized := u.String()

	if u.Path == "" || u.Path == "/" {
		if !strings.HasSuffix(normalized, "/") {
			normalized += "/"
		}
	} else {
		normalized = strings.TrimRight(normalized, "/")
	}
	return normalized
}

func cleanName(name string) string {
	if idx := strings.Index(name, "?"); idx != -1 {
		name = name[:idx]
	}
	if idx := strings.Index(name, "#"); idx != -1 {
		name = name[:idx]
	}
	if trimmed := strings.TrimRight(name, "/"); trimmed != "" {
		return trimmed
	}
	return name
}

// HashKey generates a filesystem-safe file name from a page key: the first
// 16 hex characters of its SHA-256.
func HashKey(key string) string {
	hash := sha256.Sum256([]byte(key))
	return hex.EncodeToString(hash[:])[:16]
}
