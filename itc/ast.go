package itc

// Types and functions related to parsing.

import (
	"strings"
	"text/scanner"

	"github.com/grailbio/itc/symbol"
)

// ASTNode represents an abstract syntax tree node. One ASTNode is created for
// a syntactic element found in the source file. The parser attaches source
// locations and parent pointers; no name or type is resolved at this stage.
type ASTNode interface {
	// String produces a human-readable description of the node. The resulting
	// string is only for logging; it may not be valid source.
	String() string

	// pos reports the location of this node in the source file.
	pos() scanner.Position

	// parent reports the syntactic parent, or nil for the program root.
	parent() ASTNode

	// scope reports the lexical scope introduced by this node, or nil if the
	// node introduces none.
	scope() *Scope
}

// astBase carries the fields common to all AST nodes.
type astBase struct {
	// Pos is the location of this node in the source file.
	Pos scanner.Position

	up ASTNode
}

func (b *astBase) pos() scanner.Position { return b.Pos }
func (b *astBase) parent() ASTNode       { return b.up }
func (b *astBase) scope() *Scope         { return nil }

// ASTProgram is the root node: the ordered top-level declarations of one
// source file.
type ASTProgram struct {
	astBase
	Statements []ASTNode

	sc *Scope
}

var _ ASTNode = &ASTProgram{}

func (n *ASTProgram) scope() *Scope { return n.sc }

func (n *ASTProgram) String() string {
	buf := strings.Builder{}
	for i, s := range n.Statements {
		if i > 0 {
			buf.WriteByte(' ')
		}
		buf.WriteString(s.String())
	}
	return buf.String()
}

// ASTBlock represents a "{ statements... }" region.
type ASTBlock struct {
	astBase
	Statements []ASTNode

	sc *Scope
}

var _ ASTNode = &ASTBlock{}

func (n *ASTBlock) scope() *Scope { return n.sc }

func (n *ASTBlock) String() string {
	buf := strings.Builder{}
	buf.WriteByte('{')
	for i, s := range n.Statements {
		if i > 0 {
			buf.WriteByte(';')
		}
		buf.WriteString(s.String())
	}
	buf.WriteByte('}')
	return buf.String()
}

// ASTIdentifier is a reference to a name.
type ASTIdentifier struct {
	astBase
	Name symbol.ID
}

var _ ASTNode = &ASTIdentifier{}

func (n *ASTIdentifier) String() string { return n.Name.Str() }

// ASTNumber is an integer or floating-point literal. The text is kept
// verbatim; the backend re-parses it.
type ASTNumber struct {
	astBase
	Text    string
	IsFloat bool
}

var _ ASTNode = &ASTNumber{}

func (n *ASTNumber) String() string { return n.Text }

// ASTString is a string literal, without the surrounding quotes.
type ASTString struct {
	astBase
	Text string
}

var _ ASTNode = &ASTString{}

func (n *ASTString) String() string { return `"` + n.Text + `"` }

// ASTBinary is a binary expression, including assignment (Op == tokAssign).
type ASTBinary struct {
	astBase
	Op    TokenKind
	Left  ASTNode
	Right ASTNode
}

var _ ASTNode = &ASTBinary{}

func (n *ASTBinary) String() string {
	return n.Left.String() + opText(n.Op) + n.Right.String()
}

// ASTCall is a function call by name.
type ASTCall struct {
	astBase
	Name symbol.ID
	Args []ASTNode
}

var _ ASTNode = &ASTCall{}

func (n *ASTCall) String() string {
	buf := strings.Builder{}
	buf.WriteString(n.Name.Str())
	buf.WriteByte('(')
	for i, a := range n.Args {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(a.String())
	}
	buf.WriteByte(')')
	return buf.String()
}

// ASTMemberAccess is "base.member". The member name stays unresolved until
// lowering, when the base's struct type is known.
type ASTMemberAccess struct {
	astBase
	Base   ASTNode
	Member symbol.ID
}

var _ ASTNode = &ASTMemberAccess{}

func (n *ASTMemberAccess) String() string {
	return n.Base.String() + "." + n.Member.Str()
}

// ASTReturn is a return statement. Expr may be nil.
type ASTReturn struct {
	astBase
	Expr ASTNode
}

var _ ASTNode = &ASTReturn{}

func (n *ASTReturn) String() string {
	if n.Expr == nil {
		return "return"
	}
	return "return " + n.Expr.String()
}

// ASTParameter is one formal parameter of a function declaration. A
// parameter with IsVarargs set is the variadic marker "..."; it has no type
// or name and must be last.
type ASTParameter struct {
	Pos       scanner.Position
	Type      symbol.ID
	Name      symbol.ID
	IsVarargs bool
}

func (p ASTParameter) String() string {
	if p.IsVarargs {
		return "..."
	}
	return p.Type.Str() + " " + p.Name.Str()
}

// ASTFunctionDecl is a top-level "fn" declaration.
type ASTFunctionDecl struct {
	astBase
	Name symbol.ID
	// ReturnType is the declared return type name, or symbol.Invalid when
	// omitted (meaning void).
	ReturnType symbol.ID
	Params     []ASTParameter
	// Body is nil iff IsExtern.
	Body     *ASTBlock
	IsExtern bool
	IsEntry  bool

	sc *Scope
}

var _ ASTNode = &ASTFunctionDecl{}

func (n *ASTFunctionDecl) scope() *Scope { return n.sc }

func (n *ASTFunctionDecl) String() string {
	buf := strings.Builder{}
	buf.WriteString("fn ")
	buf.WriteString(n.Name.Str())
	buf.WriteByte('(')
	for i, p := range n.Params {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(p.String())
	}
	buf.WriteByte(')')
	if n.ReturnType != symbol.Invalid {
		buf.WriteByte(' ')
		buf.WriteString(n.ReturnType.Str())
	}
	if n.IsExtern {
		buf.WriteString(" @extern")
	}
	if n.IsEntry {
		buf.WriteString(" @entry")
	}
	return buf.String()
}

// ASTTypeMember is one member of a type declaration.
type ASTTypeMember struct {
	Pos  scanner.Position
	Type symbol.ID
	Name symbol.ID
}

// ASTTypeDecl is a top-level "type" declaration.
type ASTTypeDecl struct {
	astBase
	Name    symbol.ID
	Members []ASTTypeMember

	sc *Scope
}

var _ ASTNode = &ASTTypeDecl{}

func (n *ASTTypeDecl) scope() *Scope { return n.sc }

func (n *ASTTypeDecl) String() string {
	buf := strings.Builder{}
	buf.WriteString("type ")
	buf.WriteString(n.Name.Str())
	buf.WriteByte('(')
	for i, m := range n.Members {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(m.Type.Str())
		buf.WriteByte(' ')
		buf.WriteString(m.Name.Str())
	}
	buf.WriteByte(')')
	return buf.String()
}

// ASTVarDecl is a "Type name [= value]" statement.
type ASTVarDecl struct {
	astBase
	Type  symbol.ID
	Name  symbol.ID
	Value ASTNode // may be nil
}

var _ ASTNode = &ASTVarDecl{}

func (n *ASTVarDecl) String() string {
	s := n.Type.Str() + " " + n.Name.Str()
	if n.Value != nil {
		s += "=" + n.Value.String()
	}
	return s
}

// ASTUnknown implements ASTNode. It is a placeholder whose only purpose is to
// report a source code location.
type ASTUnknown struct{ astBase }

var _ ASTNode = &ASTUnknown{}

func (n *ASTUnknown) String() string { return "(unknown)" }

// enclosingScope walks the parent chain from node (inclusive) and returns the
// nearest scope.
func enclosingScope(node ASTNode) *Scope {
	for n := node; n != nil; n = n.parent() {
		if sc := n.scope(); sc != nil {
			return sc
		}
	}
	return nil
}

// opText renders a binary operator token for diagnostics.
func opText(op TokenKind) string {
	s := op.String()
	return strings.Trim(s, "'")
}
