package lexer

import (
	"testing"

	"gopkl/internal/token"
)

func TestNextToken(t *testing.T) {
	input := `module birds
import "pkl:base"

class Bird {
  name: String
  lifespan: Int?
}

pigeon = new Bird {
  name = "Pigeon"
  lifespan = 8
}

nests = new Listing {
  "twig"
  [0] = "straw"
}
`

	tests := []struct {
		expectedType    token.TokenType
		expectedLiteral string
	}{
		{token.MODULE, "module"},
		{token.IDENT, "birds"},
		{token.IMPORT, "import"},
		{token.STRING, "pkl:base"},
		{token.CLASS, "class"},
		{token.IDENT, "Bird"},
		{token.LBRACE, "{"},
		{token.IDENT, "name"},
		{token.COLON, ":"},
		{token.IDENT, "String"},
		{token.IDENT, "lifespan"},
		{token.COLON, ":"},
		{token.IDENT, "Int"},
		{token.QUESTION, "?"},
		{token.RBRACE, "}"},
		{token.IDENT, "pigeon"},
		{token.ASSIGN, "="},
		{token.NEW, "new"},
		{token.IDENT, "Bird"},
		{token.LBRACE, "{"},
		{token.IDENT, "name"},
		{token.ASSIGN, "="},
		{token.STRING, "Pigeon"},
		{token.IDENT, "lifespan"},
		{token.ASSIGN, "="},
		{token.INT, "8"},
		{token.RBRACE, "}"},
		{token.IDENT, "nests"},
		{token.ASSIGN, "="},
		{token.NEW, "new"},
		{token.IDENT, "Listing"},
		{token.LBRACE, "{"},
		{token.STRING, "twig"},
		{token.LBRACKET, "["},
		{token.INT, "0"},
		{token.RBRACKET, "]"},
		{token.ASSIGN, "="},
		{token.STRING, "straw"},
		{token.RBRACE, "}"},
		{token.EOF, ""},
	}

	l := New(input)

	for i, tt := range tests {
		tok := l.NextToken()

		if tok.Type != tt.expectedType {
			t.Fatalf("tests[%d] - tokentype wrong. expected=%q, got=%q (literal %q)",
				i, tt.expectedType, tok.Type, tok.Literal)
		}

		if tok.Literal != tt.expectedLiteral {
			t.Fatalf("tests[%d] - literal wrong. expected=%q, got=%q",
				i, tt.expectedLiteral, tok.Literal)
		}
	}
}

func TestDocComments(t *testing.T) {
	input := `/// The bird's name.
name = "Robin"
// plain comment is skipped
lifespan = 4`

	l := New(input)

	tok := l.NextToken()
	if tok.Type != token.DOC_COMMENT {
		t.Fatalf("expected doc comment, got %q", tok.Type)
	}
	if tok.Literal != "The bird's name." {
		t.Errorf("doc comment text wrong, got %q", tok.Literal)
	}

	expected := []token.TokenType{
		token.IDENT, token.ASSIGN, token.STRING,
		token.IDENT, token.ASSIGN, token.INT,
		token.EOF,
	}
	for i, want := range expected {
		tok := l.NextToken()
		if tok.Type != want {
			t.Fatalf("token %d: expected %q, got %q", i, want, tok.Type)
		}
	}
}

func TestNegativeAndFloatNumbers(t *testing.T) {
	l := New(`a = -12 b = 3.5`)

	wants := []struct {
		typ     token.TokenType
		literal string
	}{
		{token.IDENT, "a"},
		{token.ASSIGN, "="},
		{token.INT, "-12"},
		{token.IDENT, "b"},
		{token.ASSIGN, "="},
		{token.FLOAT, "3.5"},
	}
	for i, want := range wants {
		tok := l.NextToken()
		if tok.Type != want.typ || tok.Literal != want.literal {
			t.Fatalf("token %d: expected %q %q, got %q %q",
				i, want.typ, want.literal, tok.Type, tok.Literal)
		}
	}
}
