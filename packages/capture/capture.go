package capture

import (
	"regexp"
	"strconv"
	"strings"
)

// Source names where a value is read from.
type Source string

const (
	SourceResponse Source = "response"
	SourceRequest  Source = "request"
	SourceHeader   Source = "header"
	SourceVariable Source = "variable"
)

const rootPrefix = "$."

var segmentSplit = regexp.MustCompile(`[.\[\]]`)

// Segments splits a path into its walk steps. ok is false when the path
// does not start with "$.".
func Segments(path string) (segments []string, ok bool) {
	if !strings.HasPrefix(path, rootPrefix) {
		return nil, false
	}
	for _, part := range segmentSplit.Split(path[len(rootPrefix):], -1) {
		if part != "" {
			segments = append(segments, part)
		}
	}
	return segments, true
}

// Extract walks value along path. Any miss returns nil: a nil container, an
// out-of-range index, or a segment that does not fit the current value.
func Extract(value any, path string) any {
	segments, ok := Segments(path)
	if !ok {
		return nil
	}

	current := value
	for _, seg := range segments {
		if current == nil {
			return nil
		}
		if isIndex(seg) {
			idx, err := strconv.Atoi(seg)
			if err != nil {
				return nil
			}
			list, ok := current.([]any)
			if !ok || idx < 0 || idx >= len(list) {
				return nil
			}
			current = list[idx]
			continue
		}
		switch m := current.(type) {
		case map[string]any:
			current = m[seg]
		case map[string]string:
			v, ok := m[seg]
			if !ok {
				return nil
			}
			current = v
		default:
			return nil
		}
	}
	return current
}

// ExtractHeader reads a header by path ("$.Content-Type") with a
// case-insensitive name match. "$." returns a copy of all headers.
func ExtractHeader(headers map[string]string, path string) any {
	segments, ok := Segments(path)
	if !ok {
		return nil
	}
	if len(segments) == 0 {
		out := make(map[string]any, len(headers))
		for k, v := range headers {
			out[k] = v
		}
		return out
	}
	// Header names may contain dots; rejoin what the splitter took apart.
	name := strings.TrimPrefix(path, rootPrefix)
	if v, ok := headers[name]; ok {
		return v
	}
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return nil
}

func isIndex(seg string) bool {
	for _, r := range seg {
		if r < '0' || r > '9' {
			return false
		}
	}
	return seg != ""
}
