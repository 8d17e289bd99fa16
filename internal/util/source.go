package util

import (
	"bytes"
	"fmt"
)

// LineAndColumn converts a byte offset into 1-based line and column numbers.
func LineAndColumn(src string, pos int) (line int, column int) {
	line = 1
	column = 1
	for i, char := range src {
		if i == pos {
			break
		}
		if char == '\n' {
			line++
			column = 1
		} else {
			column++
		}
	}
	return
}

// ContextLines renders the error line with up to two preceding lines and a
// caret under the offending column.
func ContextLines(src string, errorLine, errorCol int) string {
	var result bytes.Buffer

	lines := splitLines(src)
	startLine := errorLine - 2
	if startLine < 1 {
		startLine = 1
	}

	for i := startLine; i <= errorLine && i <= len(lines); i++ {
		content := lines[i-1]
		if i == errorLine {
			margin := fmt.Sprintf("  >  %3d | ", i)
			result.WriteString(fmt.Sprintf("%s%s\n", margin, content))
			caretCol := errorCol - 1
			if caretCol > len(content) {
				caretCol = len(content)
			}
			result.WriteString(fmt.Sprintf("%s^ here",
				blankOut(margin+content[:caretCol])))
		} else {
			result.WriteString(fmt.Sprintf("     %3d | %s\n", i, content))
		}
	}
	return result.String()
}

func splitLines(src string) []string {
	var lines []string
	start := 0
	for i, ch := range src {
		if ch == '\n' {
			lines = append(lines, src[start:i])
			start = i + 1
		}
	}
	if start < len(src) {
		lines = append(lines, src[start:])
	}
	return lines
}

// blankOut replaces visible characters with spaces, preserving tabs so the
// caret lines up under tabbed source.
func blankOut(s string) string {
	var buf bytes.Buffer
	for _, c := range s {
		if c == '\t' {
			buf.WriteRune('\t')
		} else {
			buf.WriteRune(' ')
		}
	}
	return buf.String()
}
