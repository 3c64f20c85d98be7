package itc

import (
	"fmt"
	"io"

	"github.com/grailbio/base/log"
	"github.com/grailbio/itc/symbol"
)

// DepState tracks a declaration's progress through lowering.
type DepState int

const (
	// Unresolved: lowering has not started.
	Unresolved DepState = iota
	// Resolving: lowering has been entered but not completed. Re-entering a
	// Resolving node means the declaration depends on itself through some
	// chain.
	Resolving
	// Resolved: lowering completed. Terminal.
	Resolved
	// Errored: lowering failed, directly or through a dependency. Terminal.
	Errored
)

func (s DepState) String() string {
	switch s {
	case Unresolved:
		return "unresolved"
	case Resolving:
		return "resolving"
	case Resolved:
		return "resolved"
	case Errored:
		return "errored"
	}
	return "invalid"
}

// DepNode wraps one top-level declaration together with the declarations
// whose lowering must complete before it.
type DepNode struct {
	AST   ASTNode
	State DepState
	// Deps is ordered, duplicate-free and never contains the node itself.
	Deps []*DepNode
	// Err is set when State is Errored.
	Err error
}

// AddDep records that n depends on dep. Idempotent; self-edges are dropped.
func (n *DepNode) AddDep(dep *DepNode) {
	if dep == n {
		return
	}
	for _, d := range n.Deps {
		if d == dep {
			return
		}
	}
	n.Deps = append(n.Deps, dep)
}

// DepNodeRegistry deduplicates dep node creation: two requests for the same
// AST node yield the same DepNode. Nodes are remembered in creation order.
type DepNodeRegistry struct {
	nodes map[ASTNode]*DepNode
	order []*DepNode
}

// NewDepNodeRegistry creates an empty registry.
func NewDepNodeRegistry() *DepNodeRegistry {
	return &DepNodeRegistry{nodes: map[ASTNode]*DepNode{}}
}

// Node returns the dep node for the given AST node, creating it on first
// request.
func (r *DepNodeRegistry) Node(ast ASTNode) *DepNode {
	if n, ok := r.nodes[ast]; ok {
		return n
	}
	n := &DepNode{AST: ast}
	r.nodes[ast] = n
	r.order = append(r.order, n)
	return n
}

// Nodes returns every registered node in creation order.
func (r *DepNodeRegistry) Nodes() []*DepNode { return r.order }

// DepGraph holds one root per top-level declaration, in source order.
type DepGraph struct {
	Roots []*DepNode
}

// BuildDepGraph walks the program and records, for every top-level
// declaration, an edge per referenced user-defined declaration. Builtin type
// names and variadic markers produce no edge. The builder performs no type
// checking: a name that does not resolve to a declaration simply contributes
// no edge, and lowering reports it later.
func BuildDepGraph(prog *ASTProgram, registry *DepNodeRegistry) *DepGraph {
	graph := &DepGraph{}
	for _, stmt := range prog.Statements {
		switch decl := stmt.(type) {
		case *ASTFunctionDecl:
			graph.Roots = append(graph.Roots, buildFunctionDeclDeps(decl, registry))
		case *ASTTypeDecl:
			graph.Roots = append(graph.Roots, buildTypeDeclDeps(decl, registry))
		default:
			log.Panicf("depgraph: unexpected top-level node %T", stmt)
		}
	}
	return graph
}

func buildFunctionDeclDeps(decl *ASTFunctionDecl, registry *DepNodeRegistry) *DepNode {
	node := registry.Node(decl)
	for _, param := range decl.Params {
		if param.IsVarargs {
			continue
		}
		addNamedDep(node, decl, param.Type, registry)
	}
	if decl.ReturnType != symbol.Invalid {
		addNamedDep(node, decl, decl.ReturnType, registry)
	}
	// An extern function contributes only parameter and return type edges.
	if decl.IsExtern {
		return node
	}
	buildExprDeps(decl.Body, node, registry)
	return node
}

func buildTypeDeclDeps(decl *ASTTypeDecl, registry *DepNodeRegistry) *DepNode {
	node := registry.Node(decl)
	for _, member := range decl.Members {
		addNamedDep(node, decl, member.Type, registry)
	}
	return node
}

// buildExprDeps records the declarations referenced under ast as dependencies
// of the enclosing declaration's dep node. The walk never follows into
// another function's body; a call contributes one edge to the callee.
func buildExprDeps(ast ASTNode, parent *DepNode, registry *DepNodeRegistry) {
	switch n := ast.(type) {
	case *ASTBlock:
		for _, stmt := range n.Statements {
			buildExprDeps(stmt, parent, registry)
		}
	case *ASTVarDecl:
		addNamedDep(parent, n, n.Type, registry)
		if n.Value != nil {
			buildExprDeps(n.Value, parent, registry)
		}
	case *ASTCall:
		addNamedDep(parent, n, n.Name, registry)
		for _, arg := range n.Args {
			buildExprDeps(arg, parent, registry)
		}
	case *ASTBinary:
		buildExprDeps(n.Left, parent, registry)
		buildExprDeps(n.Right, parent, registry)
	case *ASTMemberAccess:
		// The member name resolves during lowering, against the base's type.
		buildExprDeps(n.Base, parent, registry)
	case *ASTReturn:
		if n.Expr != nil {
			buildExprDeps(n.Expr, parent, registry)
		}
	}
}

// addNamedDep resolves name through the scope chain and, when it names a
// user-defined declaration, records an edge to it.
func addNamedDep(parent *DepNode, at ASTNode, name symbol.ID, registry *DepNodeRegistry) {
	sc := enclosingScope(at)
	if sc == nil {
		return
	}
	sym := sc.Lookup(name)
	if sym == nil || sym.Node == nil {
		// Builtin types and not-yet-known names: no edge.
		return
	}
	switch sym.Node.(type) {
	case *ASTFunctionDecl, *ASTTypeDecl:
		parent.AddDep(registry.Node(sym.Node))
	}
}

// PrintGraph writes an indented dump of the graph for debugging.
func PrintGraph(w io.Writer, graph *DepGraph) {
	var printNode func(n *DepNode, indent int)
	printNode = func(n *DepNode, indent int) {
		for i := 0; i < indent; i++ {
			io.WriteString(w, "  ") // nolint: errcheck
		}
		fmt.Fprintf(w, "%s [%s] deps=%d\n", n.AST, n.State, len(n.Deps))
		for _, d := range n.Deps {
			printNode(d, indent+1)
		}
	}
	for _, n := range graph.Roots {
		printNode(n, 0)
	}
}
