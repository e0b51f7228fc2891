package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/lu4p/cat"
)

// extractOffice handles OpenDocument text and RTF. lu4p/cat is not used for
// .docx: its paragraph regex skips <w:p> elements that carry attributes.
func extractOffice(content []byte, ext string) (string, error) {
	if ext == ".rtf" {
		content = stripRTFHeaderGroups(content)
	}
	text, err := cat.FromBytes(content)
	if err != nil {
		return "", fmt.Errorf("extract %s: %w", strings.TrimPrefix(ext, "."), err)
	}
	return strings.TrimSpace(text), nil
}

// rtfHeaderGroups are destinations whose entries lu4p/cat emits as body
// text: font names from \fonttbl, style names from \stylesheet.
var rtfHeaderGroups = [][]byte{
	[]byte(`{\fonttbl`),
	[]byte(`{\colortbl`),
	[]byte(`{\stylesheet`),
	[]byte(`{\info`),
}

// stripRTFHeaderGroups removes header destination groups, braces balanced.
// Escaped braces and backslashes are copied through.
func stripRTFHeaderGroups(content []byte) []byte {
	out := make([]byte, 0, len(content))
	for i := 0; i < len(content); {
		switch {
		case content[i] == '\\' && i+1 < len(content):
			out = append(out, content[i], content[i+1])
			i += 2
		case content[i] == '{' && isHeaderGroup(content[i:]):
			i = skipGroup(content, i)
		default:
			out = append(out, content[i])
			i++
		}
	}
	return out
}

func isHeaderGroup(b []byte) bool {
	for _, prefix := range rtfHeaderGroups {
		if bytes.HasPrefix(b, prefix) {
			return true
		}
	}
	return false
}

// skipGroup returns the index just past the group opened at start, or
// len(content) when the group is never closed.
func skipGroup(content []byte, start int) int {
	depth := 0
	for i := start; i < len(content); i++ {
		switch content[i] {
		case '\\':
			i++
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i + 1
			}
		}
	}
	return len(content)
}
