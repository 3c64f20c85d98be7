package itc

import (
	"text/scanner"

	"github.com/grailbio/itc/symbol"
)

// SymbolBinding binds a name to its declaring AST node and type. Bindings are
// stored in declaration order inside their scope.
type SymbolBinding struct {
	Name symbol.ID
	// Node is the declaring AST node (function, type or variable declaration;
	// for parameters and struct members, the enclosing declaration).
	Node ASTNode
	// Type is the binding's type id, or InvalidType when not yet known.
	Type TypeID
}

// Scope is a lexical region's symbol table. It is attached to the AST node
// that introduces the region (program, block, function or type declaration)
// and chains to the enclosing region.
//
// The per-scope structure is an ordered list; scopes are small enough that a
// linear scan beats a map.
type Scope struct {
	node     ASTNode
	parentSc *Scope
	syms     []*SymbolBinding
}

func newScope(node ASTNode, parent *Scope) *Scope {
	return &Scope{node: node, parentSc: parent}
}

// Insert binds name in this scope. A name already bound in this same scope is
// a redeclaration; shadowing an outer scope is fine.
func (sc *Scope) Insert(pos scanner.Position, name symbol.ID, node ASTNode, typ TypeID) *SymbolBinding {
	for _, sym := range sc.syms {
		if sym.Name == name {
			errorf(Redeclaration, pos, "%s already declared at %s", name.Str(), sym.Node.pos())
		}
	}
	sym := &SymbolBinding{Name: name, Node: node, Type: typ}
	sc.syms = append(sc.syms, sym)
	return sym
}

// Lookup walks from this scope to the root and returns the first binding of
// name, or nil.
func (sc *Scope) Lookup(name symbol.ID) *SymbolBinding {
	for s := sc; s != nil; s = s.parentSc {
		for _, sym := range s.syms {
			if sym.Name == name {
				return sym
			}
		}
	}
	return nil
}

// LookupLocal is Lookup restricted to this scope.
func (sc *Scope) LookupLocal(name symbol.ID) *SymbolBinding {
	for _, sym := range sc.syms {
		if sym.Name == name {
			return sym
		}
	}
	return nil
}
