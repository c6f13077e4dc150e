package coap

import (
	"net/url"
	"sort"
	"strings"
)

// normaliseUriPath URL-decodes percent-encoded triples, trims whitespace,
// prefixes with '/', strips a trailing slash, and collapses an empty
// result to "/".
func normaliseUriPath(path string) string {
	decoded, err := url.PathUnescape(strings.TrimSpace(path))
	if err != nil {
		decoded = path
	}
	decoded = strings.TrimSpace(decoded)
	decoded = strings.TrimPrefix(decoded, "/")
	decoded = strings.TrimSuffix(decoded, "/")
	if decoded == "" {
		return "/"
	}
	return "/" + decoded
}

// splitUriPath splits a normalised path into its per-segment option values
// (no leading/trailing empty segments for the root path).
func splitUriPath(path string) []string {
	if path == "/" || path == "" {
		return nil
	}
	trimmed := strings.TrimPrefix(path, "/")
	return strings.Split(trimmed, "/")
}

// joinUriPath reassembles per-segment Uri-Path option values into the
// normalised absolute path, degenerating to "/" when there are no segments.
func joinUriPath(segments []string) string {
	if len(segments) == 0 {
		return "/"
	}
	return "/" + strings.Join(segments, "/")
}

// sortOptions returns options sorted by ascending Number, stable across
// equal numbers so that repeated Uri-Path segments retain call order.
func sortOptions(opts []Option) []Option {
	sort.SliceStable(opts, func(i, j int) bool { return opts[i].Number < opts[j].Number })
	return opts
}
