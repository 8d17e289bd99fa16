package repl

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/peterh/liner"

	"gopkl/internal/evaluator"
	"gopkl/internal/module"
)

const (
	prompt     = ">> "
	contPrompt = ".. "
)

// Run drives a read-eval-print loop on stdin/stdout. On a terminal it uses
// line editing with persistent history; on a pipe it degrades to plain
// line-at-a-time reads.
func Run(eval *evaluator.Evaluator, engine *module.Engine, out io.Writer) error {
	session := NewSession(eval, engine)
	if isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd()) {
		return runInteractive(session, out)
	}
	return runPiped(session, os.Stdin, out)
}

func runInteractive(session *Session, out io.Writer) error {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	histPath := historyPath()
	if histPath != "" {
		if f, err := os.Open(histPath); err == nil {
			line.ReadHistory(f)
			f.Close()
		}
	}

	var buf []string
	for {
		p := prompt
		if len(buf) > 0 {
			p = contPrompt
		}
		input, err := line.Prompt(p)
		if err == liner.ErrPromptAborted {
			buf = nil
			continue
		}
		if err != nil {
			break
		}
		buf = append(buf, input)
		joined := strings.Join(buf, "\n")
		if braceDepth(joined) > 0 {
			continue
		}
		buf = nil
		if strings.TrimSpace(joined) == "" {
			continue
		}
		line.AppendHistory(joined)
		submit(session, joined, out)
	}

	if histPath != "" {
		if f, err := os.Create(histPath); err == nil {
			line.WriteHistory(f)
			f.Close()
		}
	}
	return nil
}

func runPiped(session *Session, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	var buf []string
	for scanner.Scan() {
		buf = append(buf, scanner.Text())
		joined := strings.Join(buf, "\n")
		if braceDepth(joined) > 0 {
			continue
		}
		buf = nil
		if strings.TrimSpace(joined) == "" {
			continue
		}
		submit(session, joined, out)
	}
	return scanner.Err()
}

func submit(session *Session, input string, out io.Writer) {
	value, err := session.Eval(input)
	if err != nil {
		fmt.Fprintf(out, "error: %v\n", err)
		return
	}
	if value != nil {
		fmt.Fprintln(out, value.Inspect())
	}
}

// braceDepth counts unbalanced object-body braces so multi-line literals
// can be entered one line at a time. String literals are respected.
func braceDepth(s string) int {
	depth := 0
	inString := false
	escaped := false
	for _, r := range s {
		if inString {
			switch {
			case escaped:
				escaped = false
			case r == '\\':
				escaped = true
			case r == '"':
				inString = false
			}
			continue
		}
		switch r {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
		}
	}
	return depth
}

func historyPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".gopkl_history")
}
