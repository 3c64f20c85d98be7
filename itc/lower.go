package itc

import (
	"text/scanner"

	"github.com/grailbio/base/log"
	"github.com/grailbio/itc/symbol"
	"v.io/x/lib/toposort"
)

// generator lowers the AST into THIR, one declaration at a time in
// dependency order. It performs name resolution, type interning and type
// checking in the same pass.
type generator struct {
	types *TypeTable
	arena *Arena

	program *THIR

	// symbols is the flat, append-only THIR-visible symbol table. Lookups
	// scan from the end, so inner bindings shadow outer ones.
	symbols []THIRSymbol

	// returnTypes is the stack of enclosing function return types, used to
	// check return statements.
	returnTypes []TypeID
}

// GenerateTHIR lowers every declaration reachable from the graph and returns
// the THIR program root. Statements are appended in a deterministic
// dependency-respecting order: dependencies first, graph-insertion (source)
// order among independents.
func GenerateTHIR(types *TypeTable, arena *Arena, graph *DepGraph, registry *DepNodeRegistry) (program *THIR, err error) {
	defer recoverError(&err)

	g := &generator{types: types, arena: arena}
	g.program = arena.Alloc(THIRProgram, scanner.Position{})
	g.program.Type = VoidID

	// Schedule the roots dependencies-first. The sorter visits nodes in
	// insertion order, so independent declarations keep their source order.
	sorter := toposort.Sorter{}
	for _, n := range graph.Roots {
		sorter.AddNode(n)
	}
	for _, n := range graph.Roots {
		for _, d := range n.Deps {
			sorter.AddEdge(n, d)
		}
	}
	sorted, _ := sorter.Sort()
	for _, x := range sorted {
		g.lowerNode(x.(*DepNode))
	}
	// Sweep for anything the sorter did not reach (dependency-free components
	// registered outside the root set).
	for _, n := range registry.Nodes() {
		if n.State != Resolved {
			g.lowerNode(n)
		}
	}
	return g.program, nil
}

// lowerNode lowers one declaration, recursively forcing its dependencies
// first. Re-entering a node that is still Resolving means the declaration
// depends on itself through some chain.
func (g *generator) lowerNode(n *DepNode) {
	switch n.State {
	case Resolved:
		return
	case Errored:
		if n.Err != nil {
			panic(n.Err)
		}
		errorf(CyclicDependency, n.AST.pos(), "%s failed to lower", n.AST)
	case Resolving:
		errorf(CyclicDependency, n.AST.pos(), "cyclic dependency detected while lowering %s", n.AST)
	}
	n.State = Resolving
	defer func() {
		if n.State != Resolving {
			return
		}
		// Left through a panic: record the failure before it propagates.
		e := recover()
		n.State = Errored
		if cerr, ok := e.(*Error); ok {
			n.Err = cerr
		}
		panic(e)
	}()

	for _, d := range n.Deps {
		g.lowerNode(d)
	}
	thir := g.lowerDecl(n.AST)
	Debugf(n.AST, "lowered (%s)", g.types.String(thir.Type))
	g.program.Statements = append(g.program.Statements, thir)
	n.State = Resolved
}

func (g *generator) lowerDecl(ast ASTNode) *THIR {
	switch n := ast.(type) {
	case *ASTFunctionDecl:
		return g.lowerFunctionDecl(n)
	case *ASTTypeDecl:
		return g.lowerTypeDecl(n)
	}
	log.Panicf("lower: unexpected declaration node %T", ast)
	return nil
}

// lowerFunctionDecl interns the function's type and lowers its body. The
// function's own symbol is registered before the body so a self-call inside
// the body resolves.
func (g *generator) lowerFunctionDecl(decl *ASTFunctionDecl) *THIR {
	thir := g.arena.Alloc(THIRFunction, decl.Pos)
	thir.Name = decl.Name
	thir.IsExtern = decl.IsExtern
	thir.IsEntry = decl.IsEntry

	var paramTypes []TypeID
	varargs := false
	for _, param := range decl.Params {
		if param.IsVarargs {
			varargs = true
			thir.Params = append(thir.Params, THIRParam{Type: VoidID, IsVarargs: true})
			continue
		}
		typ := g.resolveTypeName(param.Pos, param.Type)
		paramTypes = append(paramTypes, typ.ID)
		thir.Params = append(thir.Params, THIRParam{Name: param.Name, Type: typ.ID})
	}

	retID := VoidID
	if decl.ReturnType != symbol.Invalid {
		retID = g.resolveTypeName(decl.Pos, decl.ReturnType).ID
	}

	fnType, created := g.types.FindOrCreateFunc(retID, paramTypes, varargs)
	Debugf(decl, "interned type %s (new=%v)", g.types.String(fnType.ID), created)
	thir.Type = fnType.ID

	// Record the function at the enclosing scope and in the THIR symbol
	// table before the body is lowered.
	if sym := enclosingScope(decl.parent()).LookupLocal(decl.Name); sym != nil {
		sym.Type = fnType.ID
	}
	g.symbols = append(g.symbols, THIRSymbol{Name: decl.Name, THIR: thir})

	// Parameters become declaration nodes in the function's scope so that
	// identifier references inside the body resolve to them.
	for i := range thir.Params {
		p := &thir.Params[i]
		if p.IsVarargs {
			continue
		}
		pd := g.arena.Alloc(THIRVarDecl, decl.Pos)
		pd.Name = p.Name
		pd.Type = p.Type
		p.Decl = pd
		decl.sc.Insert(decl.Pos, p.Name, decl, p.Type)
		g.symbols = append(g.symbols, THIRSymbol{Name: p.Name, THIR: pd})
	}

	// An extern declaration has no body to examine.
	if !decl.IsExtern {
		g.returnTypes = append(g.returnTypes, retID)
		thir.Body = g.lowerExpr(decl.Body, false)
		g.returnTypes = g.returnTypes[:len(g.returnTypes)-1]
	}
	return thir
}

// lowerTypeDecl creates the struct type before resolving its members, so a
// member whose type name resolves to this same declaration finds an
// installed type.
func (g *generator) lowerTypeDecl(decl *ASTTypeDecl) *THIR {
	thir := g.arena.Alloc(THIRTypeDecl, decl.Pos)
	thir.Name = decl.Name

	typ := g.types.CreateStruct(decl, decl.Name)
	thir.Type = typ.ID

	if sym := enclosingScope(decl.parent()).LookupLocal(decl.Name); sym != nil {
		sym.Type = typ.ID
	}
	g.symbols = append(g.symbols, THIRSymbol{Name: decl.Name, THIR: thir})

	for _, member := range decl.Members {
		mtyp := g.resolveTypeName(member.Pos, member.Type)
		typ.Members = append(typ.Members, Member{Name: member.Name, Type: mtyp.ID})
		thir.Members = append(thir.Members, THIRMember{Name: member.Name, Type: mtyp.ID})
		decl.sc.Insert(member.Pos, member.Name, decl, mtyp.ID)
	}
	return thir
}

// lowerExpr lowers a statement or expression node. address selects address
// mode: the node denotes storage and no value load is implied. Only lvalue
// forms may be lowered in address mode.
func (g *generator) lowerExpr(ast ASTNode, address bool) *THIR {
	switch n := ast.(type) {
	case *ASTNumber:
		thir := g.arena.Alloc(THIRNumber, n.Pos)
		thir.Text = n.Text
		thir.IsFloat = n.IsFloat
		thir.Type = I32ID
		if n.IsFloat {
			thir.Type = F32ID
		}
		return thir

	case *ASTString:
		thir := g.arena.Alloc(THIRString, n.Pos)
		thir.Text = n.Text
		thir.Type = StringID
		return thir

	case *ASTIdentifier:
		resolved := findTHIRSymbol(g.symbols, n.Name)
		if resolved == nil {
			errorf(UnknownName, n.Pos, "%s is not declared", n.Name.Str())
		}
		thir := g.arena.Alloc(THIRIdentifier, n.Pos)
		thir.Name = n.Name
		thir.Resolved = resolved
		thir.Type = resolved.Type
		return thir

	case *ASTMemberAccess:
		base := g.lowerExpr(n.Base, address)
		baseType := g.types.Get(base.Type)
		if baseType.Kind != StructKind {
			errorf(TypeMismatch, n.Pos, "%s is not a struct", g.types.String(base.Type))
		}
		index := g.types.MemberIndex(baseType, n.Member)
		if index < 0 {
			errorf(UnknownMember, n.Pos, "%s has no member %s", g.types.String(base.Type), n.Member.Str())
		}
		thir := g.arena.Alloc(THIRMemberAccess, n.Pos)
		thir.Base = base
		thir.Member = n.Member
		thir.MemberIndex = index
		thir.Type = baseType.Members[index].Type
		return thir

	case *ASTCall:
		return g.lowerCall(n)

	case *ASTBinary:
		return g.lowerBinary(n)

	case *ASTReturn:
		thir := g.arena.Alloc(THIRReturn, n.Pos)
		thir.Type = VoidID
		want := g.returnTypes[len(g.returnTypes)-1]
		if n.Expr == nil {
			if want != VoidID {
				errorf(TypeMismatch, n.Pos, "missing return value: function returns %s", g.types.String(want))
			}
			return thir
		}
		thir.Expr = g.lowerExpr(n.Expr, false)
		if thir.Expr.Type != want {
			errorf(TypeMismatch, n.Pos, "cannot return %s from a function returning %s",
				g.types.String(thir.Expr.Type), g.types.String(want))
		}
		return thir

	case *ASTVarDecl:
		return g.lowerVarDecl(n)

	case *ASTBlock:
		thir := g.arena.Alloc(THIRBlock, n.Pos)
		thir.Type = VoidID
		for _, stmt := range n.Statements {
			thir.Statements = append(thir.Statements, g.lowerExpr(stmt, false))
		}
		return thir
	}
	log.Panicf("lower: unexpected node %T", ast)
	return nil
}

func (g *generator) lowerCall(n *ASTCall) *THIR {
	callee := findTHIRSymbol(g.symbols, n.Name)
	if callee == nil {
		errorf(UnknownName, n.Pos, "%s is not declared", n.Name.Str())
	}
	fnType := g.types.Get(callee.Type)
	if fnType.Kind != FuncKind {
		errorf(NotCallable, n.Pos, "%s is a %s, not a function", n.Name.Str(), g.types.String(callee.Type))
	}

	if fnType.Varargs {
		if len(n.Args) < len(fnType.Params) {
			errorf(WrongArity, n.Pos, "%s takes at least %d arguments, got %d",
				n.Name.Str(), len(fnType.Params), len(n.Args))
		}
	} else if len(n.Args) != len(fnType.Params) {
		errorf(WrongArity, n.Pos, "%s takes %d arguments, got %d",
			n.Name.Str(), len(fnType.Params), len(n.Args))
	}

	thir := g.arena.Alloc(THIRCall, n.Pos)
	thir.Name = n.Name
	thir.Callee = callee
	for i, arg := range n.Args {
		a := g.lowerExpr(arg, false)
		// Variadic tail slots are not checked.
		if i < len(fnType.Params) && a.Type != fnType.Params[i] {
			errorf(TypeMismatch, arg.pos(), "argument %d of %s: cannot use %s as %s",
				i+1, n.Name.Str(), g.types.String(a.Type), g.types.String(fnType.Params[i]))
		}
		thir.Args = append(thir.Args, a)
	}
	thir.Type = fnType.Return
	return thir
}

func (g *generator) lowerBinary(n *ASTBinary) *THIR {
	thir := g.arena.Alloc(THIRBinary, n.Pos)
	thir.Op = n.Op
	if n.Op == tokAssign {
		// The left operand denotes storage. Only lvalue forms qualify.
		switch n.Left.(type) {
		case *ASTIdentifier, *ASTMemberAccess:
		default:
			errorf(NotAssignable, n.Left.pos(), "cannot assign to %s", n.Left)
		}
		thir.Left = g.lowerExpr(n.Left, true)
	} else {
		thir.Left = g.lowerExpr(n.Left, false)
	}
	thir.Right = g.lowerExpr(n.Right, false)
	if thir.Left.Type != thir.Right.Type {
		errorf(TypeMismatch, n.Pos, "operator %s: mismatched operands %s and %s",
			opText(n.Op), g.types.String(thir.Left.Type), g.types.String(thir.Right.Type))
	}
	thir.Type = thir.Left.Type
	return thir
}

func (g *generator) lowerVarDecl(n *ASTVarDecl) *THIR {
	typ := g.resolveTypeName(n.Pos, n.Type)
	thir := g.arena.Alloc(THIRVarDecl, n.Pos)
	thir.Name = n.Name
	thir.Type = typ.ID
	if n.Value != nil {
		thir.Expr = g.lowerExpr(n.Value, false)
		if thir.Expr.Type != typ.ID {
			errorf(TypeMismatch, n.Pos, "cannot initialize %s %s with %s",
				g.types.String(typ.ID), n.Name.Str(), g.types.String(thir.Expr.Type))
		}
	}
	enclosingScope(n).Insert(n.Pos, n.Name, n, typ.ID)
	g.symbols = append(g.symbols, THIRSymbol{Name: n.Name, THIR: thir})
	return thir
}

// resolveTypeName looks up a type name in the type table. By the time a
// declaration is lowered its dependencies have been, so a missing name here
// is a real error, not an ordering artifact.
func (g *generator) resolveTypeName(pos scanner.Position, name symbol.ID) *Type {
	typ := g.types.FindByName(name)
	if typ == nil {
		errorf(UnknownName, pos, "%s is not a type", name.Str())
	}
	return typ
}
