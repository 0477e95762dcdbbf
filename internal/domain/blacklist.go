package domain

import "strings"

// DefaultBlacklist lists URLs known to serve "content removed" placeholder images
var DefaultBlacklist = []string{
	"https://assets.tumblr.com/images/media_violation/community_guidelines_v1_500.png",
	"https://i.imgur.com/removed.png",
}

// Blacklist is a read-only set of URLs whose responses are never saved.
// It is populated once and safe for concurrent reads.
type Blacklist struct {
	urls map[string]struct{}
}

// NewBlacklist creates a blacklist from DefaultBlacklist and extra entries.
// Blank entries are ignored.
func NewBlacklist(extra ...string) *Blacklist {
	b := &Blacklist{urls: make(map[string]struct{}, len(DefaultBlacklist)+len(extra))}
	for _, u := range DefaultBlacklist {
		b.urls[u] = struct{}{}
	}
	for _, u := range extra {
		u = strings.TrimSpace(u)
		if u == "" {
			continue
		}
		b.urls[u] = struct{}{}
	}
	return b
}

// Contains returns true if url is blacklisted
func (b *Blacklist) Contains(url string) bool {
	if b == nil || url == "" {
		return false
	}
	_, ok := b.urls[url]
	return ok
}

// Len returns the number of entries
func (b *Blacklist) Len() int {
	if b == nil {
		return 0
	}
	return len(b.urls)
}
