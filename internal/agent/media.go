package agent

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"path"
	"regexp"
	"strconv"
	"strings"
)

var (
	mediaMarkerPattern = regexp.MustCompile(`!\[[^\]]*\]\(([^)\s]+)\)`)
	blankRunPattern    = regexp.MustCompile(`\n{3,}`)
)

// ExtractMediaPaths returns the file references embedded as ![alt](path)
// markers, with the internal scheme stripped and duplicates removed.
func ExtractMediaPaths(text string) []string {
	matches := mediaMarkerPattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(matches))
	paths := make([]string, 0, len(matches))
	for _, m := range matches {
		p := strings.TrimPrefix(strings.TrimSpace(m[1]), MediaScheme)
		if p == "" {
			continue
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		paths = append(paths, p)
	}
	return paths
}

// StripMediaMarkers removes every media marker so the chat never renders
// a broken inline link.
func StripMediaMarkers(text string) string {
	cleaned := mediaMarkerPattern.ReplaceAllString(text, "")
	cleaned = blankRunPattern.ReplaceAllString(cleaned, "\n\n")
	return strings.TrimSpace(cleaned)
}

// ExtractContextID returns the first non-empty identifier found under one
// of names, checked in order. Strings and numbers are accepted.
func ExtractContextID(fields map[string]json.RawMessage, names []string) (string, bool) {
	for _, name := range names {
		raw, ok := fields[name]
		if !ok || len(raw) == 0 {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			if s = strings.TrimSpace(s); s != "" {
				return s, true
			}
			continue
		}
		var n json.Number
		if err := json.Unmarshal(raw, &n); err == nil && n.String() != "" {
			return n.String(), true
		}
	}
	return "", false
}

// decodeMedia decodes one base64 payload, tolerating a data: URI prefix.
func decodeMedia(payload string) ([]byte, error) {
	payload = strings.TrimSpace(payload)
	if strings.HasPrefix(payload, "data:") {
		idx := strings.Index(payload, ";base64,")
		if idx < 0 {
			return nil, fmt.Errorf("unsupported data uri")
		}
		payload = payload[idx+len(";base64,"):]
	}
	if payload == "" {
		return nil, fmt.Errorf("empty payload")
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("decode base64: %w", err)
	}
	return data, nil
}

// lookupMedia finds the payload for a requested path; the agent keys its
// answer either by the full path or by the bare filename.
func lookupMedia(files map[string]string, p string) (string, bool) {
	if v, ok := files[p]; ok {
		return v, true
	}
	v, ok := files[path.Base(p)]
	return v, ok
}

func quoteAll(paths []string) string {
	quoted := make([]string, len(paths))
	for i, p := range paths {
		quoted[i] = strconv.Quote(p)
	}
	return strings.Join(quoted, ", ")
}
