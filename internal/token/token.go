package token

type TokenType string

const (
	ILLEGAL     = "ILLEGAL"
	EOF         = "EOF"
	DOC_COMMENT = "DOC_COMMENT"

	// Identifiers + literals
	IDENT  = "IDENT"  // foo, bar2, ...
	INT    = "INT"    // 42
	FLOAT  = "FLOAT"  // 4.2
	STRING = "STRING" // "foobar"

	// Operators
	ASSIGN   = "="
	QUESTION = "?"
	STAR     = "*"

	// Delimiters
	PERIOD   = "."
	ELLIPSIS = "..."
	COMMA    = ","
	COLON    = ":"
	ARROW    = "->"

	LPAREN   = "("
	RPAREN   = ")"
	LBRACE   = "{"
	RBRACE   = "}"
	LBRACKET = "["
	RBRACKET = "]"

	// Keywords
	MODULE  = "MODULE"
	AMENDS  = "AMENDS"
	EXTENDS = "EXTENDS"
	IMPORT  = "IMPORT"
	AS      = "AS"
	CLASS   = "CLASS"
	NEW     = "NEW"
	LOCAL   = "LOCAL"
	CONST   = "CONST"
	FIXED   = "FIXED"
	HIDDEN  = "HIDDEN"
	TRUE    = "TRUE"
	FALSE   = "FALSE"
	NULL    = "NULL"
)

type Token struct {
	Type     TokenType
	Literal  string
	Position int // the src index of the token
}

var keywords = map[string]TokenType{
	// constants
	"null":  NULL,
	"true":  TRUE,
	"false": FALSE,

	// declarations
	"module":  MODULE,
	"amends":  AMENDS,
	"extends": EXTENDS,
	"import":  IMPORT,
	"as":      AS,
	"class":   CLASS,
	"new":     NEW,

	// modifiers
	"local":  LOCAL,
	"const":  CONST,
	"fixed":  FIXED,
	"hidden": HIDDEN,
}

func LookupIdent(ident string) TokenType {
	if tok, ok := keywords[ident]; ok {
		return tok
	}
	return IDENT
}
