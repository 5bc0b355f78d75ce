package span

import (
	"regexp"
	"strings"
)

// keyPattern accepts one or more "/"-separated segments, optionally rooted
// and optionally followed by a ":label" duration suffix.
var keyPattern = regexp.MustCompile(`^/?[^/:]+(/[^/:]+)*(:[^/:]+)?$`)

// Key is a parsed profile key such as "/request/render:template".
type Key struct {
	Segments []string
	Rooted   bool
	Label    string
}

// ParseKey parses a raw profile key. Keys that do not match the path grammar,
// or that contain a blank segment or label, are rejected with ErrInvalidProfileKey.
func ParseKey(raw string) (Key, error) {
	if !keyPattern.MatchString(raw) {
		return Key{}, newKeyError(ErrInvalidProfileKey, raw)
	}

	k := Key{Rooted: strings.HasPrefix(raw, "/")}
	path := strings.TrimPrefix(raw, "/")

	if i := strings.LastIndex(path, ":"); i >= 0 {
		k.Label = strings.TrimSpace(path[i+1:])
		path = path[:i]
		if k.Label == "" {
			return Key{}, newKeyError(ErrInvalidProfileKey, raw)
		}
	}

	for _, seg := range strings.Split(path, "/") {
		seg = strings.TrimSpace(seg)
		if seg == "" {
			return Key{}, newKeyError(ErrInvalidProfileKey, raw)
		}
		k.Segments = append(k.Segments, seg)
	}

	return k, nil
}

// String returns the canonical form of the key, used for matching ends to starts.
func (k Key) String() string {
	var sb strings.Builder
	if k.Rooted {
		sb.WriteByte('/')
	}
	sb.WriteString(strings.Join(k.Segments, "/"))
	if k.Label != "" {
		sb.WriteByte(':')
		sb.WriteString(k.Label)
	}
	return sb.String()
}

// rest drops the first segment.
func (k Key) rest() Key {
	if len(k.Segments) == 0 {
		return k
	}
	return Key{Segments: k.Segments[1:], Rooted: k.Rooted, Label: k.Label}
}
