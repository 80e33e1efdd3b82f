package merge

import (
	"strings"
)

// Composite targets hold one delimited block per contributing bundle.
// Blocks are located by exact marker-line match, replaced in place when
// the bundle already contributed, and appended otherwise. Re-applying
// identical content is a no-op, so installs are idempotent.

func beginMarker(bundle string) string {
	return "<!-- augent:begin " + bundle + " -->"
}

func endMarker(bundle string) string {
	return "<!-- augent:end " + bundle + " -->"
}

// mergeComposite places the bundle's block into existing text content.
func (m *Merger) mergeComposite(existing, incoming []byte, bundle string) []byte {
	block := beginMarker(bundle) + "\n" +
		strings.TrimRight(string(incoming), "\n") + "\n" +
		endMarker(bundle)

	text := string(existing)
	if start, end, found := findBlock(text, bundle); found {
		return []byte(text[:start] + block + text[end:])
	}

	if strings.TrimSpace(text) == "" {
		return []byte(block + "\n")
	}
	return []byte(strings.TrimRight(text, "\n") + "\n\n" + block + "\n")
}

// RemoveBlock deletes the bundle's delimited block from text content.
// It returns the remaining content and whether a block was removed; a
// result of only whitespace means the file no longer has any content.
func RemoveBlock(existing []byte, bundle string) ([]byte, bool) {
	text := string(existing)
	start, end, found := findBlock(text, bundle)
	if !found {
		return existing, false
	}

	before := strings.TrimRight(text[:start], "\n")
	after := strings.TrimLeft(text[end:], "\n")
	switch {
	case before == "" && after == "":
		return []byte{}, true
	case before == "":
		return []byte(after), true
	case after == "":
		return []byte(before + "\n"), true
	default:
		return []byte(before + "\n\n" + after), true
	}
}

// HasBlock reports whether the content carries a block for the bundle.
func HasBlock(existing []byte, bundle string) bool {
	_, _, found := findBlock(string(existing), bundle)
	return found
}

// findBlock locates the bundle's block, returning the byte offsets of
// its begin marker and of the first character after its end marker.
func findBlock(text, bundle string) (int, int, bool) {
	begin := beginMarker(bundle)
	end := endMarker(bundle)

	start := markerIndex(text, begin)
	if start < 0 {
		return 0, 0, false
	}
	rest := markerIndex(text[start:], end)
	if rest < 0 {
		return 0, 0, false
	}
	stop := start + rest + len(end)
	return start, stop, true
}

// markerIndex finds a marker that occupies a whole line.
func markerIndex(text, marker string) int {
	offset := 0
	for {
		i := strings.Index(text[offset:], marker)
		if i < 0 {
			return -1
		}
		abs := offset + i
		lineStart := abs == 0 || text[abs-1] == '\n'
		lineEnd := abs+len(marker) == len(text) || text[abs+len(marker)] == '\n'
		if lineStart && lineEnd {
			return abs
		}
		offset = abs + len(marker)
	}
}
