package itc

import (
	"text/scanner"

	"github.com/grailbio/itc/symbol"
)

// parser turns a token stream into an AST. Recursive descent, fail fast: the
// first syntax error aborts by raising *Error through the panic path.
//
// The parser attaches parent pointers and creates the scopes for the nodes
// that introduce lexical regions. Top-level declaration names are installed
// into the program scope here so that the dependency graph builder can
// resolve references before any lowering has run.
type parser struct {
	lex *lexer

	tok     Token // lookahead
	ahead   Token // second lookahead, valid iff haveAhead
	haveAhead bool
}

// Parse parses one source file into an AST program.
func Parse(filename, src string) (prog *ASTProgram, err error) {
	defer recoverError(&err)
	p := &parser{lex: newLexer(filename, src)}
	p.tok = p.lex.next()
	prog = p.parseProgram()
	return prog, nil
}

// advance consumes the current token and returns it.
func (p *parser) advance() Token {
	tok := p.tok
	if p.haveAhead {
		p.tok, p.haveAhead = p.ahead, false
	} else {
		p.tok = p.lex.next()
	}
	return tok
}

// peek returns the token after the current one.
func (p *parser) peek() Token {
	if !p.haveAhead {
		p.ahead = p.lex.next()
		p.haveAhead = true
	}
	return p.ahead
}

// expect consumes the current token, which must be of the given kind.
func (p *parser) expect(kind TokenKind) Token {
	if p.tok.Kind != kind {
		errorf(SyntaxError, p.tok.Pos, "expected %s, found %s", kind, p.tok.Kind)
	}
	return p.advance()
}

func (p *parser) expectIdent() (symbol.ID, scanner.Position) {
	tok := p.expect(tokIdent)
	return symbol.Intern(tok.Text), tok.Pos
}

func (p *parser) parseProgram() *ASTProgram {
	prog := &ASTProgram{astBase: astBase{Pos: p.tok.Pos}}
	prog.sc = newScope(prog, nil)
	for p.tok.Kind != tokEOF {
		var decl ASTNode
		switch p.tok.Kind {
		case tokFn:
			decl = p.parseFunctionDecl(prog)
		case tokTypeKeyword:
			decl = p.parseTypeDecl(prog)
		default:
			errorf(SyntaxError, p.tok.Pos, "expected a declaration, found %s", p.tok.Kind)
		}
		prog.Statements = append(prog.Statements, decl)
	}
	return prog
}

// parseFunctionDecl parses
//
//	"fn" name "(" params ")" [returntype] ("@extern"|"@entry")* (block|";")
//
// The declaration ends in ";" when @extern is given and in a block otherwise.
func (p *parser) parseFunctionDecl(prog *ASTProgram) *ASTFunctionDecl {
	start := p.expect(tokFn)
	name, _ := p.expectIdent()
	fn := &ASTFunctionDecl{astBase: astBase{Pos: start.Pos, up: prog}, Name: name}
	fn.sc = newScope(fn, prog.sc)

	p.expect(tokOpenParen)
	for p.tok.Kind != tokCloseParen {
		if len(fn.Params) > 0 {
			p.expect(tokComma)
		}
		fn.Params = append(fn.Params, p.parseParameter(fn))
	}
	p.expect(tokCloseParen)

	if p.tok.Kind == tokIdent {
		fn.ReturnType = symbol.Intern(p.advance().Text)
	}
	for p.tok.Kind == tokAt {
		at := p.advance()
		attr, _ := p.expectIdent()
		switch attr.Str() {
		case "extern":
			fn.IsExtern = true
		case "entry":
			fn.IsEntry = true
		default:
			errorf(SyntaxError, at.Pos, "unknown attribute @%s", attr.Str())
		}
	}

	if fn.IsExtern {
		p.expect(tokSemicolon)
	} else {
		fn.Body = p.parseBlock(fn, fn.sc)
	}
	prog.sc.Insert(fn.Pos, fn.Name, fn, InvalidType)
	return fn
}

// parseParameter parses "type name" or the variadic marker "...", which must
// be the last parameter.
func (p *parser) parseParameter(fn *ASTFunctionDecl) ASTParameter {
	if p.tok.Kind == tokEllipsis {
		tok := p.advance()
		if p.tok.Kind != tokCloseParen {
			errorf(SyntaxError, tok.Pos, "'...' must be the last parameter")
		}
		return ASTParameter{Pos: tok.Pos, IsVarargs: true}
	}
	typ, pos := p.expectIdent()
	name, _ := p.expectIdent()
	return ASTParameter{Pos: pos, Type: typ, Name: name}
}

// parseTypeDecl parses
//
//	"type" name "(" type name ("," type name)* ")" ";"
func (p *parser) parseTypeDecl(prog *ASTProgram) *ASTTypeDecl {
	start := p.expect(tokTypeKeyword)
	name, _ := p.expectIdent()
	decl := &ASTTypeDecl{astBase: astBase{Pos: start.Pos, up: prog}, Name: name}
	decl.sc = newScope(decl, prog.sc)

	p.expect(tokOpenParen)
	for p.tok.Kind != tokCloseParen {
		if len(decl.Members) > 0 {
			p.expect(tokComma)
		}
		mtyp, mpos := p.expectIdent()
		mname, _ := p.expectIdent()
		decl.Members = append(decl.Members, ASTTypeMember{Pos: mpos, Type: mtyp, Name: mname})
	}
	p.expect(tokCloseParen)
	p.expect(tokSemicolon)
	prog.sc.Insert(decl.Pos, decl.Name, decl, InvalidType)
	return decl
}

func (p *parser) parseBlock(parent ASTNode, parentScope *Scope) *ASTBlock {
	start := p.expect(tokOpenCurly)
	block := &ASTBlock{astBase: astBase{Pos: start.Pos, up: parent}}
	block.sc = newScope(block, parentScope)
	for p.tok.Kind != tokCloseCurly {
		block.Statements = append(block.Statements, p.parseStatement(block))
	}
	p.expect(tokCloseCurly)
	return block
}

// parseStatement parses one statement inside a block. "ident ident" starts a
// variable declaration; anything else is an expression statement, a return,
// or a nested block.
func (p *parser) parseStatement(block *ASTBlock) ASTNode {
	switch p.tok.Kind {
	case tokOpenCurly:
		return p.parseBlock(block, block.sc)
	case tokReturnKeyword:
		ret := &ASTReturn{astBase: astBase{Pos: p.advance().Pos, up: block}}
		if p.tok.Kind != tokSemicolon {
			ret.Expr = p.parseExpression(ret)
		}
		p.expect(tokSemicolon)
		return ret
	case tokIdent:
		if p.peek().Kind == tokIdent {
			return p.parseVarDecl(block)
		}
	}
	expr := p.parseExpression(block)
	p.expect(tokSemicolon)
	return expr
}

func (p *parser) parseVarDecl(block *ASTBlock) *ASTVarDecl {
	typ, pos := p.expectIdent()
	name, _ := p.expectIdent()
	decl := &ASTVarDecl{astBase: astBase{Pos: pos, up: block}, Type: typ, Name: name}
	if p.tok.Kind == tokAssign {
		p.advance()
		decl.Value = p.parseExpression(decl)
	}
	p.expect(tokSemicolon)
	return decl
}

// Binary operator precedence. Assignment is the loosest and right
// associative; everything else is left associative.
var binaryPrec = map[TokenKind]int{
	tokAssign:     1,
	tokLogicalOr:  2,
	tokLogicalAnd: 3,
	tokOr:         4,
	tokXor:        5,
	tokAnd:        6,
	tokEQ:         7,
	tokNEQ:        7,
	tokLT:         8,
	tokGT:         8,
	tokLTE:        8,
	tokGTE:        8,
	tokShl:        9,
	tokShr:        9,
	tokAdd:        10,
	tokSub:        10,
	tokMul:        11,
	tokDiv:        11,
	tokMod:        11,
}

func (p *parser) parseExpression(parent ASTNode) ASTNode {
	return p.parseBinary(parent, 1)
}

// parseBinary is precedence climbing over parsePostfix.
func (p *parser) parseBinary(parent ASTNode, minPrec int) ASTNode {
	left := p.parsePostfix(parent)
	for {
		prec, ok := binaryPrec[p.tok.Kind]
		if !ok || prec < minPrec {
			return left
		}
		op := p.advance()
		next := prec + 1
		if op.Kind == tokAssign { // right associative
			next = prec
		}
		bin := &ASTBinary{astBase: astBase{Pos: op.Pos, up: parent}, Op: op.Kind, Left: left}
		reparent(left, bin)
		bin.Right = p.parseBinary(bin, next)
		left = bin
	}
}

// parsePostfix parses a primary followed by member accesses.
func (p *parser) parsePostfix(parent ASTNode) ASTNode {
	expr := p.parsePrimary(parent)
	for p.tok.Kind == tokDot {
		dot := p.advance()
		member, _ := p.expectIdent()
		access := &ASTMemberAccess{astBase: astBase{Pos: dot.Pos, up: parent}, Base: expr, Member: member}
		reparent(expr, access)
		expr = access
	}
	return expr
}

func (p *parser) parsePrimary(parent ASTNode) ASTNode {
	switch p.tok.Kind {
	case tokNumber:
		tok := p.advance()
		return &ASTNumber{astBase: astBase{Pos: tok.Pos, up: parent}, Text: tok.Text}
	case tokFloat:
		tok := p.advance()
		return &ASTNumber{astBase: astBase{Pos: tok.Pos, up: parent}, Text: tok.Text, IsFloat: true}
	case tokString:
		tok := p.advance()
		return &ASTString{astBase: astBase{Pos: tok.Pos, up: parent}, Text: tok.Text}
	case tokOpenParen:
		p.advance()
		expr := p.parseExpression(parent)
		p.expect(tokCloseParen)
		return expr
	case tokIdent:
		if p.peek().Kind == tokOpenParen {
			return p.parseCall(parent)
		}
		tok := p.advance()
		return &ASTIdentifier{astBase: astBase{Pos: tok.Pos, up: parent}, Name: symbol.Intern(tok.Text)}
	}
	errorf(SyntaxError, p.tok.Pos, "expected an expression, found %s", p.tok.Kind)
	panic("notreached")
}

func (p *parser) parseCall(parent ASTNode) *ASTCall {
	name := p.expect(tokIdent)
	call := &ASTCall{astBase: astBase{Pos: name.Pos, up: parent}, Name: symbol.Intern(name.Text)}
	p.expect(tokOpenParen)
	for p.tok.Kind != tokCloseParen {
		if len(call.Args) > 0 {
			p.expect(tokComma)
		}
		call.Args = append(call.Args, p.parseExpression(call))
	}
	p.expect(tokCloseParen)
	return call
}

// reparent updates a node's parent pointer after it is adopted by a larger
// expression.
func reparent(node, parent ASTNode) {
	switch n := node.(type) {
	case *ASTIdentifier:
		n.up = parent
	case *ASTNumber:
		n.up = parent
	case *ASTString:
		n.up = parent
	case *ASTBinary:
		n.up = parent
	case *ASTCall:
		n.up = parent
	case *ASTMemberAccess:
		n.up = parent
	case *ASTBlock:
		n.up = parent
	}
}
