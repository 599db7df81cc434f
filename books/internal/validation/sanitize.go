package validation

import (
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

const DefaultSanitizeCacheSize = 1000

var htmlEscaper = strings.NewReplacer(
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#39;",
	"/", "&#x2F;",
)

// Sanitizer escapes HTML-significant characters and memoizes results.
// The cache is bounded and evicts the entry inserted first: lookups use
// Peek so reads never refresh an entry.
type Sanitizer struct {
	cache *lru.Cache[string, string]
}

func NewSanitizer(size int) *Sanitizer {
	if size <= 0 {
		size = DefaultSanitizeCacheSize
	}
	cache, err := lru.New[string, string](size)
	if err != nil {
		panic(err) // only fails on a non-positive size
	}
	return &Sanitizer{cache: cache}
}

func (s *Sanitizer) Sanitize(in string) string {
	if out, ok := s.cache.Peek(in); ok {
		return out
	}
	out := htmlEscaper.Replace(in)
	s.cache.ContainsOrAdd(in, out)
	return out
}

func (s *Sanitizer) Len() int {
	return s.cache.Len()
}

func (s *Sanitizer) cached(in string) bool {
	return s.cache.Contains(in)
}
