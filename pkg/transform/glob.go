package transform

import (
	"regexp"
	"strings"

	"github.com/asyrjasalo/augent/pkg/errors"
)

// Glob patterns support three tokens on top of literal path segments:
//
//   - `*`      any run of characters within one segment (never `/`)
//   - `**`     a whole segment matching zero or more segments
//   - `{name}` like `*`, but capturing the matched text for use in the
//     target pattern; at most one capture per pattern
//
// Matching is segment-wise, so `commands/*.md` does not match
// `commands/sub/x.md` while `commands/**` does.

// matchGlob matches a universal path against a source glob. It returns
// the `{name}` capture (empty when the pattern has none) and whether
// the path matched.
func matchGlob(pattern, path string) (string, bool) {
	patSegs := strings.Split(pattern, "/")
	pathSegs := strings.Split(path, "/")
	return matchSegments(patSegs, pathSegs)
}

func matchSegments(pattern, path []string) (string, bool) {
	if len(pattern) == 0 {
		return "", len(path) == 0
	}

	if pattern[0] == "**" {
		// Zero segments consumed.
		if capture, ok := matchSegments(pattern[1:], path); ok {
			return capture, true
		}
		// One or more segments consumed.
		for i := 1; i <= len(path); i++ {
			if capture, ok := matchSegments(pattern[1:], path[i:]); ok {
				return capture, true
			}
		}
		return "", false
	}

	if len(path) == 0 {
		return "", false
	}

	capture, ok := matchSegment(pattern[0], path[0])
	if !ok {
		return "", false
	}
	rest, ok := matchSegments(pattern[1:], path[1:])
	if !ok {
		return "", false
	}
	if capture == "" {
		capture = rest
	}
	return capture, true
}

// segmentRe caches compiled segment patterns; rule lists are short and
// reused across every path of every bundle.
var segmentRe = map[string]*regexp.Regexp{}

// matchSegment matches one path segment against one pattern segment,
// returning a `{name}` capture if the segment has one.
func matchSegment(pattern, segment string) (string, bool) {
	re, ok := segmentRe[pattern]
	if !ok {
		re = compileSegment(pattern)
		segmentRe[pattern] = re
	}
	m := re.FindStringSubmatch(segment)
	if m == nil {
		return "", false
	}
	if len(m) > 1 {
		return m[1], true
	}
	return "", true
}

func compileSegment(pattern string) *regexp.Regexp {
	var b strings.Builder
	b.WriteString("^")
	rest := pattern
	for rest != "" {
		switch {
		case strings.HasPrefix(rest, "*"):
			b.WriteString("[^/]*")
			rest = rest[1:]
		case strings.HasPrefix(rest, "{"):
			end := strings.Index(rest, "}")
			if end < 0 {
				// Unterminated brace: treat literally.
				b.WriteString(regexp.QuoteMeta(rest))
				rest = ""
				break
			}
			b.WriteString("([^/]+)")
			rest = rest[end+1:]
		default:
			next := strings.IndexAny(rest, "*{")
			if next < 0 {
				next = len(rest)
			}
			b.WriteString(regexp.QuoteMeta(rest[:next]))
			rest = rest[next:]
		}
	}
	b.WriteString("$")
	return regexp.MustCompile(b.String())
}

// expandTarget substitutes the capture into a target pattern.
func expandTarget(target, capture string) (string, error) {
	if !strings.Contains(target, "{") {
		return target, nil
	}
	start := strings.Index(target, "{")
	end := strings.Index(target, "}")
	if end < start {
		return "", errors.Newf(errors.ErrInvalidInput, "malformed target pattern %q", target)
	}
	if capture == "" {
		return "", errors.Newf(errors.ErrInvalidInput,
			"target pattern %q references a capture the source pattern did not make", target)
	}
	return target[:start] + capture + target[end+1:], nil
}
