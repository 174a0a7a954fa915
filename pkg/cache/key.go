package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// keyPrefix namespaces every cache key in Redis.
const keyPrefix = "schedule"

// CacheKey represents a unique identifier for a cached API response.
type CacheKey struct {
	// Scope separates credentials sharing one Redis (see ScopeFor). Empty for none.
	Scope string

	// Endpoint is the API path (e.g., "/appointments/42")
	Endpoint string

	// QueryParams are the encoded request parameters, including filter and page
	QueryParams url.Values
}

// ScopeFor derives a short, non-reversible scope from an API key.
func ScopeFor(apiKey string) string {
	sum := sha256.Sum256([]byte(apiKey))
	return hex.EncodeToString(sum[:6])
}

// String generates a deterministic cache key string.
// Format: schedule:scope:endpoint:query1=val1:query2=a,b
//
// Example:
//
//	schedule:1a2b3c4d5e6f:appointments:filter=status EQ scheduled:page=1
func (k CacheKey) String() string {
	parts := []string{keyPrefix}

	if k.Scope != "" {
		parts = append(parts, k.Scope)
	}

	// Add endpoint (normalize path)
	endpoint := strings.Trim(k.Endpoint, "/")
	if endpoint != "" {
		parts = append(parts, endpoint)
	}

	// Add query params (sorted for determinism)
	if len(k.QueryParams) > 0 {
		queryKeys := make([]string, 0, len(k.QueryParams))
		for key := range k.QueryParams {
			queryKeys = append(queryKeys, key)
		}
		sort.Strings(queryKeys)

		for _, key := range queryKeys {
			parts = append(parts, fmt.Sprintf("%s=%s", key, strings.Join(k.QueryParams[key], ",")))
		}
	}

	return strings.Join(parts, ":")
}

// EndpointPattern returns a Redis glob matching every cached response for the
// endpoint and its sub-resources within scope.
func EndpointPattern(scope, endpoint string) string {
	prefix := CacheKey{Scope: scope, Endpoint: endpoint}.String()
	return globEscape(prefix) + "*"
}

// globEscape escapes Redis glob metacharacters.
func globEscape(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
