package itc

import (
	"text/scanner"

	"github.com/grailbio/itc/symbol"
)

// THIRKind identifies the shape of a THIR node.
type THIRKind int

const (
	THIRProgram THIRKind = iota
	THIRBlock
	THIRBinary
	THIRCall
	THIRMemberAccess
	THIRIdentifier
	THIRNumber
	THIRString
	THIRReturn
	THIRFunction
	THIRTypeDecl
	THIRVarDecl
)

func (k THIRKind) String() string {
	switch k {
	case THIRProgram:
		return "Program"
	case THIRBlock:
		return "Block"
	case THIRBinary:
		return "Binary"
	case THIRCall:
		return "Call"
	case THIRMemberAccess:
		return "MemberAccess"
	case THIRIdentifier:
		return "Identifier"
	case THIRNumber:
		return "Number"
	case THIRString:
		return "String"
	case THIRReturn:
		return "Return"
	case THIRFunction:
		return "Function"
	case THIRTypeDecl:
		return "TypeDecl"
	case THIRVarDecl:
		return "VarDecl"
	}
	return "invalid"
}

// THIRParam is one formal parameter of a lowered function.
type THIRParam struct {
	Name symbol.ID
	Type TypeID
	// IsVarargs marks the trailing variadic marker; it has no name and its
	// Type is void.
	IsVarargs bool
	// Decl is the THIRVarDecl the parameter's identifier references resolve
	// to. Nil for the variadic marker.
	Decl *THIR
}

// THIRMember is one member of a lowered type declaration.
type THIRMember struct {
	Name symbol.ID
	Type TypeID
}

// THIR is a typed IR node: the AST shape with every node carrying a resolved
// type id, identifiers pointing directly at the THIR of their declaration,
// and calls pointing at their callee. Nodes are allocated from an Arena and
// live for the whole compilation, so the cross-references stay valid for the
// lifetime of the program tree.
//
// The struct is a tagged union in the usual Go shape: Kind says which field
// group is meaningful.
type THIR struct {
	Kind THIRKind
	// Type is a valid index into the type table in every completed THIR.
	Type TypeID
	Pos  scanner.Position

	// Text is the literal text of a number or string node.
	Text    string
	IsFloat bool

	// Name is the identifier, function, type or variable name.
	Name symbol.ID

	// Resolved points at the declaration a THIRIdentifier refers to. Always a
	// THIRFunction, THIRVarDecl or THIRTypeDecl.
	Resolved *THIR

	// Statements of a program or block, in lowering order for the program and
	// source order for blocks.
	Statements []*THIR

	// Expr is a return statement's expression (may be nil) or a variable
	// declaration's initializer (may be nil).
	Expr *THIR

	// Callee and Args belong to a call.
	Callee *THIR
	Args   []*THIR

	// Left, Op, Right belong to a binary expression. Op==tokAssign makes the
	// node an assignment whose Left was lowered in address mode.
	Left  *THIR
	Op    TokenKind
	Right *THIR

	// Base, Member and MemberIndex belong to a member access. MemberIndex is
	// the member's declaration-order position in the base's struct type.
	Base        *THIR
	Member      symbol.ID
	MemberIndex int

	// Function payload.
	Params   []THIRParam
	Body     *THIR
	IsExtern bool
	IsEntry  bool

	// Type declaration payload, in declaration order.
	Members []THIRMember
}

const arenaChunkCap = 1024

// Arena is a bump allocator for THIR nodes. Chunks have a fixed capacity and
// are never reallocated, so node pointers stay stable. The arena is dropped
// as a unit; individual nodes are never freed.
type Arena struct {
	chunks [][]THIR
}

// NewArena creates an empty arena.
func NewArena() *Arena {
	return &Arena{}
}

// Alloc returns a zeroed node of the given kind at the given location.
func (a *Arena) Alloc(kind THIRKind, pos scanner.Position) *THIR {
	n := len(a.chunks)
	if n == 0 || len(a.chunks[n-1]) == cap(a.chunks[n-1]) {
		a.chunks = append(a.chunks, make([]THIR, 0, arenaChunkCap))
		n++
	}
	chunk := &a.chunks[n-1]
	*chunk = append(*chunk, THIR{Kind: kind, Type: InvalidType, Pos: pos})
	return &(*chunk)[len(*chunk)-1]
}

// Len reports the number of allocated nodes.
func (a *Arena) Len() int {
	total := 0
	for _, c := range a.chunks {
		total += len(c)
	}
	return total
}

// THIRSymbol binds a name to the THIR of its declaration. The generator keeps
// a flat, append-only vector of these as the THIR-visible symbol table.
type THIRSymbol struct {
	Name symbol.ID
	THIR *THIR
}

// findTHIRSymbol scans the vector from the end so that the most recent
// binding of a name wins.
func findTHIRSymbol(symbols []THIRSymbol, name symbol.ID) *THIR {
	for i := len(symbols) - 1; i >= 0; i-- {
		if symbols[i].Name == name {
			return symbols[i].THIR
		}
	}
	return nil
}
