package cache

import (
	"net/url"
	"sort"
	"strings"
)

// KeyPrefix prefixes every page cache key.
const KeyPrefix = "otx:page"

// Key generates a deterministic cache key for a page URL.
// Format: otx:page:host/path:query1=val1:query2=val2
//
// Scheme is dropped and the host lowercased. URLs that fail to parse are
// used verbatim.
func Key(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return KeyPrefix + ":" + rawURL
	}

	parts := []string{KeyPrefix}

	path := strings.TrimRight(u.Path, "/")
	parts = append(parts, strings.ToLower(u.Host)+path)

	// Sorted for determinism
	query := u.Query()
	if len(query) > 0 {
		keys := make([]string, 0, len(query))
		for key := range query {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		for _, key := range keys {
			values := query[key]
			sort.Strings(values)
			parts = append(parts, key+"="+strings.Join(values, ","))
		}
	}

	return strings.Join(parts, ":")
}
