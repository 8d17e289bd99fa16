package util

import (
	"strings"
	"testing"
)

func TestLineAndColumn(t *testing.T) {
	src := "a = 1\nbb = 2\nccc = 3"
	tests := []struct {
		pos        int
		line, column int
	}{
		{0, 1, 1},
		{4, 1, 5},
		{6, 2, 1},
		{9, 2, 4},
		{13, 3, 1},
	}
	for _, tt := range tests {
		line, column := LineAndColumn(src, tt.pos)
		if line != tt.line || column != tt.column {
			t.Errorf("LineAndColumn(%d) = %d:%d, want %d:%d",
				tt.pos, line, column, tt.line, tt.column)
		}
	}
}

func TestContextLinesPointsAtColumn(t *testing.T) {
	src := "first = 1\nsecond = 2\nthird == 3"
	out := ContextLines(src, 3, 8)
	if !strings.Contains(out, "third == 3") {
		t.Errorf("missing error line in %q", out)
	}
	if !strings.Contains(out, "^ here") {
		t.Errorf("missing caret in %q", out)
	}
	if !strings.Contains(out, "first = 1") {
		t.Errorf("missing leading context in %q", out)
	}
}
