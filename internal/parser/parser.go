package parser

import (
	"fmt"
	"strconv"

	"gopkl/internal/ast"
	"gopkl/internal/lexer"
	"gopkl/internal/token"
	"gopkl/internal/util"
)

type Parser struct {
	l   *lexer.Lexer
	src string

	curToken  token.Token
	peekToken token.Token

	// pendingDoc holds the most recent doc comment, attached to the next
	// class, property, or member that is parsed.
	pendingDoc string

	errors []string
}

func New(l *lexer.Lexer, src string) *Parser {
	p := &Parser{l: l, src: src}

	// Read two tokens, so curToken and peekToken are both set
	p.nextToken()
	p.nextToken()

	return p
}

func (p *Parser) Errors() []string {
	return p.errors
}

func (p *Parser) nextToken() {
	p.curToken = p.peekToken
	p.peekToken = p.l.NextToken()
	for p.peekToken.Type == token.DOC_COMMENT {
		p.pendingDoc = p.peekToken.Literal
		p.peekToken = p.l.NextToken()
	}
}

// takeDoc consumes the pending doc comment, if any.
func (p *Parser) takeDoc() string {
	doc := p.pendingDoc
	p.pendingDoc = ""
	return doc
}

func (p *Parser) errorf(format string, a ...interface{}) {
	p.errors = append(p.errors, fmt.Sprintf(format, a...))
}

// at renders a byte offset as a line:column location for error messages.
func (p *Parser) at(pos int) string {
	line, column := util.LineAndColumn(p.src, pos)
	return fmt.Sprintf("at %d:%d", line, column)
}

func (p *Parser) expectPeek(t token.TokenType) bool {
	if p.peekToken.Type == t {
		p.nextToken()
		return true
	}
	p.errorf("expected next token to be %s, got %s instead %s",
		t, p.peekToken.Type, p.at(p.peekToken.Position))
	return false
}

// ParseModule parses one unit of source text: an optional module header,
// optional amends/extends clause, imports, and the module body.
func (p *Parser) ParseModule() *ast.Module {
	mod := &ast.Module{SiteID: ast.NewSiteID()}

	if p.curToken.Type == token.MODULE {
		if !p.expectPeek(token.IDENT) {
			return mod
		}
		name := p.curToken.Literal
		for p.peekToken.Type == token.PERIOD {
			p.nextToken()
			if !p.expectPeek(token.IDENT) {
				return mod
			}
			name += "." + p.curToken.Literal
		}
		mod.Name = name
		p.nextToken()
	}

	switch p.curToken.Type {
	case token.AMENDS:
		clause := &ast.ModuleClause{Token: p.curToken}
		if !p.expectPeek(token.STRING) {
			return mod
		}
		clause.URI = p.curToken.Literal
		mod.Amends = clause
		p.nextToken()
	case token.EXTENDS:
		clause := &ast.ModuleClause{Token: p.curToken}
		if !p.expectPeek(token.STRING) {
			return mod
		}
		clause.URI = p.curToken.Literal
		mod.Extends = clause
		p.nextToken()
	}

	for p.curToken.Type == token.IMPORT {
		imp := p.parseImport()
		if imp != nil {
			mod.Imports = append(mod.Imports, imp)
		}
		p.nextToken()
	}

	for p.curToken.Type != token.EOF {
		stmt := p.parseStatement()
		if stmt != nil {
			mod.Body = append(mod.Body, stmt)
		}
		p.nextToken()
	}

	return mod
}

func (p *Parser) parseImport() *ast.ImportStatement {
	imp := &ast.ImportStatement{Token: p.curToken}
	if !p.expectPeek(token.STRING) {
		return nil
	}
	imp.URI = p.curToken.Literal
	if p.peekToken.Type == token.AS {
		p.nextToken()
		if !p.expectPeek(token.IDENT) {
			return nil
		}
		imp.Alias = &ast.Identifier{Token: p.curToken, Value: p.curToken.Literal}
	}
	return imp
}

func (p *Parser) parseStatement() ast.Statement {
	switch p.curToken.Type {
	case token.CLASS:
		return p.parseClassDeclaration()
	case token.LOCAL, token.CONST, token.FIXED, token.HIDDEN, token.IDENT:
		return p.parsePropertyDeclaration()
	default:
		p.errorf("unexpected token %s (%q) %s",
			p.curToken.Type, p.curToken.Literal, p.at(p.curToken.Position))
		return nil
	}
}

func (p *Parser) parseClassDeclaration() *ast.ClassDeclaration {
	decl := &ast.ClassDeclaration{Token: p.curToken, Doc: p.takeDoc()}

	if !p.expectPeek(token.IDENT) {
		return nil
	}
	decl.Name = &ast.Identifier{Token: p.curToken, Value: p.curToken.Literal}

	if p.peekToken.Type == token.EXTENDS {
		p.nextToken()
		if !p.expectPeek(token.IDENT) {
			return nil
		}
		decl.Superclass = &ast.Identifier{Token: p.curToken, Value: p.curToken.Literal}
	}

	if !p.expectPeek(token.LBRACE) {
		return nil
	}
	p.nextToken()

	for p.curToken.Type != token.RBRACE && p.curToken.Type != token.EOF {
		prop := p.parsePropertyDeclaration()
		if prop == nil {
			return nil
		}
		decl.Properties = append(decl.Properties, prop)
		p.nextToken()
	}

	return decl
}

// parsePropertyDeclaration handles class properties and module-level
// properties alike: `[modifiers] name[: Type] [= expr]`.
func (p *Parser) parsePropertyDeclaration() *ast.PropertyDeclaration {
	decl := &ast.PropertyDeclaration{Doc: p.takeDoc()}
	decl.Header.Start = p.curToken.Position

	for {
		switch p.curToken.Type {
		case token.LOCAL:
			decl.IsLocal = true
		case token.CONST:
			decl.IsConst = true
		case token.FIXED:
			decl.IsFixed = true
		case token.HIDDEN:
			// hidden affects rendering only; parsed and dropped here
		default:
			goto name
		}
		p.nextToken()
	}

name:
	if p.curToken.Type != token.IDENT {
		p.errorf("expected property name, got %s %s",
			p.curToken.Type, p.at(p.curToken.Position))
		return nil
	}
	decl.Token = p.curToken
	decl.Name = &ast.Identifier{Token: p.curToken, Value: p.curToken.Literal}

	if p.peekToken.Type == token.COLON {
		p.nextToken()
		p.nextToken()
		decl.Type = p.parseTypeAnnotation()
		if decl.Type == nil {
			return nil
		}
	}
	decl.Header.End = p.curToken.Position + len(p.curToken.Literal)

	switch p.peekToken.Type {
	case token.ASSIGN:
		p.nextToken()
		p.nextToken()
		decl.Default = p.parseExpression()
	case token.LBRACE:
		// `name { ... }` amends the inherited value of the property.
		p.nextToken()
		body := p.parseObjectBody()
		if body == nil {
			return nil
		}
		decl.Default = &ast.AmendExpression{
			Token:  body.Token,
			Parent: decl.Name,
			Body:   body,
		}
		decl.IsAmend = true
	}

	return decl
}

func (p *Parser) parseTypeAnnotation() *ast.TypeAnnotation {
	if p.curToken.Type != token.IDENT {
		p.errorf("expected type name, got %s %s",
			p.curToken.Type, p.at(p.curToken.Position))
		return nil
	}
	t := &ast.TypeAnnotation{Token: p.curToken, Name: p.curToken.Literal}
	if p.peekToken.Type == token.QUESTION {
		p.nextToken()
		t.Nullable = true
	}
	return t
}

// ---- expressions ------------------------------------------------------------

func (p *Parser) parseExpression() ast.Expression {
	expr := p.parsePrimary()
	if expr == nil {
		return nil
	}

	// postfix: member access, subscript, and amendment
	for {
		switch p.peekToken.Type {
		case token.PERIOD:
			p.nextToken()
			dot := p.curToken
			if !p.expectPeek(token.IDENT) {
				return nil
			}
			expr = &ast.MemberAccess{
				Token:  dot,
				Target: expr,
				Name:   &ast.Identifier{Token: p.curToken, Value: p.curToken.Literal},
			}
		case token.LBRACKET:
			p.nextToken()
			bracket := p.curToken
			p.nextToken()
			index := p.parseExpression()
			if index == nil || !p.expectPeek(token.RBRACKET) {
				return nil
			}
			expr = &ast.Subscript{Token: bracket, Target: expr, Index: index}
		case token.LBRACE:
			p.nextToken()
			body := p.parseObjectBody()
			if body == nil {
				return nil
			}
			expr = &ast.AmendExpression{Token: body.Token, Parent: expr, Body: body}
		default:
			return expr
		}
	}
}

func (p *Parser) parsePrimary() ast.Expression {
	switch p.curToken.Type {
	case token.INT:
		value, err := strconv.ParseInt(p.curToken.Literal, 10, 64)
		if err != nil {
			p.errorf("could not parse %q as integer", p.curToken.Literal)
			return nil
		}
		return &ast.IntegerLiteral{Token: p.curToken, Value: value}
	case token.FLOAT:
		value, err := strconv.ParseFloat(p.curToken.Literal, 64)
		if err != nil {
			p.errorf("could not parse %q as float", p.curToken.Literal)
			return nil
		}
		return &ast.FloatLiteral{Token: p.curToken, Value: value}
	case token.STRING:
		return &ast.StringLiteral{Token: p.curToken, Value: p.curToken.Literal}
	case token.TRUE:
		return &ast.BooleanLiteral{Token: p.curToken, Value: true}
	case token.FALSE:
		return &ast.BooleanLiteral{Token: p.curToken, Value: false}
	case token.NULL:
		return &ast.NullLiteral{Token: p.curToken}
	case token.IDENT:
		return &ast.Identifier{Token: p.curToken, Value: p.curToken.Literal}
	case token.NEW:
		return p.parseNewExpression()
	case token.LPAREN:
		p.nextToken()
		expr := p.parseExpression()
		if !p.expectPeek(token.RPAREN) {
			return nil
		}
		return expr
	default:
		p.errorf("unexpected token %s (%q) in expression %s",
			p.curToken.Type, p.curToken.Literal, p.at(p.curToken.Position))
		return nil
	}
}

func (p *Parser) parseNewExpression() ast.Expression {
	expr := &ast.NewExpression{Token: p.curToken}

	if p.peekToken.Type == token.IDENT {
		p.nextToken()
		expr.Class = &ast.Identifier{Token: p.curToken, Value: p.curToken.Literal}
	}

	if !p.expectPeek(token.LBRACE) {
		return nil
	}
	expr.Body = p.parseObjectBody()
	if expr.Body == nil {
		return nil
	}
	return expr
}

// parseObjectBody parses a `{ ... }` member fragment. curToken must be the
// opening brace on entry; curToken is the closing brace on exit.
func (p *Parser) parseObjectBody() *ast.ObjectBody {
	body := &ast.ObjectBody{Token: p.curToken, SiteID: ast.NewSiteID()}
	p.nextToken()

	// `{ a, b -> ... }` declares positional parameters for function-shaped
	// bodies.
	if p.curToken.Type == token.IDENT &&
		(p.peekToken.Type == token.COMMA || p.peekToken.Type == token.ARROW) {
		for {
			body.Parameters = append(body.Parameters, p.curToken.Literal)
			if p.peekToken.Type != token.COMMA {
				break
			}
			p.nextToken()
			if !p.expectPeek(token.IDENT) {
				return nil
			}
		}
		if !p.expectPeek(token.ARROW) {
			return nil
		}
		p.nextToken()
	}

	for p.curToken.Type != token.RBRACE && p.curToken.Type != token.EOF {
		member := p.parseObjectMember()
		if member == nil {
			return nil
		}
		body.Members = append(body.Members, member)
		p.nextToken()
	}

	if p.curToken.Type != token.RBRACE {
		p.errorf("unterminated object body starting %s", p.at(body.Token.Position))
		return nil
	}
	return body
}

func (p *Parser) parseObjectMember() ast.ObjectMember {
	switch {
	case p.curToken.Type == token.LBRACKET:
		return p.parseEntryMember()
	case p.curToken.Type == token.LOCAL,
		p.curToken.Type == token.IDENT &&
			(p.peekToken.Type == token.ASSIGN || p.peekToken.Type == token.COLON):
		return p.parsePropertyMember()
	default:
		return p.parseElementMember()
	}
}

func (p *Parser) parseEntryMember() *ast.EntryMember {
	entry := &ast.EntryMember{Token: p.curToken}
	entry.Body.Start = p.curToken.Position

	p.nextToken()
	entry.Key = p.parseExpression()
	if entry.Key == nil || !p.expectPeek(token.RBRACKET) {
		return nil
	}
	if !p.expectPeek(token.ASSIGN) {
		return nil
	}
	p.nextToken()
	entry.Value = p.parseExpression()
	if entry.Value == nil {
		return nil
	}
	entry.Body.End = p.curToken.Position + len(p.curToken.Literal)
	return entry
}

func (p *Parser) parsePropertyMember() *ast.PropertyMember {
	member := &ast.PropertyMember{Doc: p.takeDoc()}
	member.Header.Start = p.curToken.Position

	if p.curToken.Type == token.LOCAL {
		member.IsLocal = true
		p.nextToken()
	}

	if p.curToken.Type != token.IDENT {
		p.errorf("expected member name, got %s %s",
			p.curToken.Type, p.at(p.curToken.Position))
		return nil
	}
	member.Token = p.curToken
	member.Name = &ast.Identifier{Token: p.curToken, Value: p.curToken.Literal}

	if p.peekToken.Type == token.COLON {
		p.nextToken()
		p.nextToken()
		member.Type = p.parseTypeAnnotation()
		if member.Type == nil {
			return nil
		}
	}
	member.Header.End = p.curToken.Position + len(p.curToken.Literal)

	if !p.expectPeek(token.ASSIGN) {
		return nil
	}
	p.nextToken()
	member.Body.Start = p.curToken.Position
	member.Value = p.parseExpression()
	if member.Value == nil {
		return nil
	}
	member.Body.End = p.curToken.Position + len(p.curToken.Literal)
	return member
}

func (p *Parser) parseElementMember() *ast.ElementMember {
	element := &ast.ElementMember{Token: p.curToken}
	element.Body.Start = p.curToken.Position
	element.Value = p.parseExpression()
	if element.Value == nil {
		return nil
	}
	element.Body.End = p.curToken.Position + len(p.curToken.Literal)
	return element
}
