package lexer

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"gopkl/internal/token"
)

type Lexer struct {
	input        string
	position     int  // current byte position in input (points to start of current rune)
	readPosition int  // next byte position in input (start of next rune)
	ch           rune // current rune under examination; 0 means EOF
}

func New(input string) *Lexer {
	l := &Lexer{input: input}
	l.readChar()
	return l
}

func (l *Lexer) NextToken() token.Token {
	var tok token.Token

	l.skipWhitespace()

	startPosition := l.position

	switch l.ch {
	case '=':
		tok = newToken(token.ASSIGN, l.ch, startPosition)
	case '?':
		tok = newToken(token.QUESTION, l.ch, startPosition)
	case '*':
		tok = newToken(token.STAR, l.ch, startPosition)
	case ':':
		tok = newToken(token.COLON, l.ch, startPosition)
	case ',':
		tok = newToken(token.COMMA, l.ch, startPosition)
	case '.':
		if l.peekChar() == '.' && l.peekTwoChars() == '.' {
			tok = token.Token{Type: token.ELLIPSIS, Literal: "...", Position: startPosition}
			l.readChar()
			l.readChar()
		} else {
			tok = newToken(token.PERIOD, l.ch, startPosition)
		}
	case '-':
		if l.peekChar() == '>' {
			tok = token.Token{Type: token.ARROW, Literal: "->", Position: startPosition}
			l.readChar()
		} else if isDigit(l.peekChar()) {
			return l.readNumberToken(startPosition)
		} else {
			tok = newToken(token.ILLEGAL, l.ch, startPosition)
		}
	case '/':
		if l.peekChar() == '/' {
			return l.readComment(startPosition)
		}
		tok = newToken(token.ILLEGAL, l.ch, startPosition)
	case '{':
		tok = newToken(token.LBRACE, l.ch, startPosition)
	case '}':
		tok = newToken(token.RBRACE, l.ch, startPosition)
	case '(':
		tok = newToken(token.LPAREN, l.ch, startPosition)
	case ')':
		tok = newToken(token.RPAREN, l.ch, startPosition)
	case '[':
		tok = newToken(token.LBRACKET, l.ch, startPosition)
	case ']':
		tok = newToken(token.RBRACKET, l.ch, startPosition)
	case '"':
		tok.Type = token.STRING
		tok.Literal = l.readString()
		tok.Position = startPosition
	case 0:
		tok.Literal = ""
		tok.Type = token.EOF
		tok.Position = startPosition
	default:
		if isLetter(l.ch) {
			tok.Literal = l.readIdentifier()
			tok.Type = token.LookupIdent(tok.Literal)
			tok.Position = startPosition
			return tok
		} else if isDigit(l.ch) {
			return l.readNumberToken(startPosition)
		}
		tok = newToken(token.ILLEGAL, l.ch, startPosition)
	}

	l.readChar()
	return tok
}

// readComment consumes a `//` line comment. Triple-slash doc comments are
// surfaced as DOC_COMMENT tokens so the parser can attach them to members;
// plain comments are skipped.
func (l *Lexer) readComment(startPosition int) token.Token {
	isDoc := strings.HasPrefix(l.input[l.position:], "///")
	start := l.position
	for l.ch != '\n' && l.ch != 0 {
		l.readChar()
	}
	if isDoc {
		text := strings.TrimSpace(strings.TrimPrefix(l.input[start:l.position], "///"))
		return token.Token{Type: token.DOC_COMMENT, Literal: text, Position: startPosition}
	}
	return l.NextToken()
}

func (l *Lexer) readNumberToken(startPosition int) token.Token {
	literal := l.readNumber()
	typ := token.TokenType(token.INT)
	if strings.Contains(literal, ".") {
		typ = token.FLOAT
	}
	return token.Token{Type: typ, Literal: literal, Position: startPosition}
}

func (l *Lexer) skipWhitespace() {
	for l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\r' {
		l.readChar()
	}
}

// readChar advances by one UTF-8 rune, updating byte positions
func (l *Lexer) readChar() {
	if l.readPosition >= len(l.input) {
		l.ch = 0
		l.position = l.readPosition
		return
	}
	r, size := utf8.DecodeRuneInString(l.input[l.readPosition:])
	l.ch = r
	l.position = l.readPosition
	l.readPosition += size
}

// peekChar returns the next rune without advancing; returns 0 at EOF
func (l *Lexer) peekChar() rune {
	if l.readPosition >= len(l.input) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.input[l.readPosition:])
	return r
}

func (l *Lexer) peekTwoChars() rune {
	if l.readPosition >= len(l.input) {
		return 0
	}
	_, size := utf8.DecodeRuneInString(l.input[l.readPosition:])
	if l.readPosition+size >= len(l.input) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.input[l.readPosition+size:])
	return r
}

func (l *Lexer) readIdentifier() string {
	position := l.position
	for isLetter(l.ch) || isDigit(l.ch) {
		l.readChar()
	}
	return l.input[position:l.position]
}

func (l *Lexer) readNumber() string {
	position := l.position
	if l.ch == '-' {
		l.readChar()
	}
	for isDigit(l.ch) {
		l.readChar()
	}
	if l.ch == '.' && isDigit(l.peekChar()) {
		l.readChar()
		for isDigit(l.ch) {
			l.readChar()
		}
	}
	return l.input[position:l.position]
}

func (l *Lexer) readString() string {
	var out strings.Builder
	for {
		l.readChar()
		if l.ch == '"' || l.ch == 0 {
			break
		}
		if l.ch == '\\' {
			l.readChar()
			switch l.ch {
			case 'n':
				out.WriteRune('\n')
			case 't':
				out.WriteRune('\t')
			case 'r':
				out.WriteRune('\r')
			case '"':
				out.WriteRune('"')
			case '\\':
				out.WriteRune('\\')
			default:
				out.WriteRune(l.ch)
			}
			continue
		}
		out.WriteRune(l.ch)
	}
	return out.String()
}

func newToken(tokenType token.TokenType, ch rune, position int) token.Token {
	return token.Token{Type: tokenType, Literal: string(ch), Position: position}
}

func isLetter(ch rune) bool {
	return unicode.IsLetter(ch) || ch == '_'
}

func isDigit(ch rune) bool {
	return '0' <= ch && ch <= '9'
}
