package cache

import "strings"

// Key builds a deterministic cache key from a logical query kind and its
// parameters. Two requests that denote the same logical resource must
// produce the same key.
//
// Example:
//
//	Key("search-images", "sunflowers") -> "search-images-sunflowers"
//	Key("object-detail", "436535")     -> "object-detail-436535"
func Key(kind string, parts ...string) string {
	elems := make([]string, 0, len(parts)+1)
	elems = append(elems, kind)
	for _, p := range parts {
		elems = append(elems, strings.ToLower(strings.TrimSpace(p)))
	}
	return strings.Join(elems, "-")
}
