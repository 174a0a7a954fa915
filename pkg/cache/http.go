package cache

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// NewEntry builds a cache entry for a successful response. The lifetime comes
// from Cache-Control max-age, then Expires, then fallbackTTL. Responses marked
// no-store or no-cache get an already expired entry, which Set ignores.
func NewEntry(statusCode int, header http.Header, body []byte, fallbackTTL time.Duration) *CacheEntry {
	now := time.Now()
	return &CacheEntry{
		Data:       body,
		StatusCode: statusCode,
		Headers:    header.Clone(),
		Expires:    now.Add(lifetime(header, now, fallbackTTL)),
		CachedAt:   now,
	}
}

// lifetime determines how long a response may be cached.
func lifetime(header http.Header, now time.Time, fallbackTTL time.Duration) time.Duration {
	if cc := header.Get("Cache-Control"); cc != "" {
		for _, directive := range strings.Split(cc, ",") {
			directive = strings.ToLower(strings.TrimSpace(directive))
			switch {
			case directive == "no-store" || directive == "no-cache":
				return 0
			case strings.HasPrefix(directive, "max-age="):
				if secs, err := strconv.Atoi(strings.TrimPrefix(directive, "max-age=")); err == nil && secs >= 0 {
					return time.Duration(secs) * time.Second
				}
			}
		}
	}

	if expiresStr := header.Get("Expires"); expiresStr != "" {
		if expires, err := http.ParseTime(expiresStr); err == nil {
			if ttl := expires.Sub(now); ttl > 0 {
				return ttl
			}
			return 0
		}
	}

	return fallbackTTL
}
