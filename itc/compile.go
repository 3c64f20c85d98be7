package itc

import (
	"os"

	"github.com/pkg/errors"
)

// Context owns the state of one compilation: the type table, the THIR arena
// and the dependency graph. A Context is single-use and single-threaded;
// create a fresh one per source file. There is no package-level compiler
// state, so compilations are independent of each other.
type Context struct {
	Types *TypeTable
	Arena *Arena

	Registry *DepNodeRegistry
	Graph    *DepGraph

	// Program is the THIR root, set by Lower.
	Program *THIR
}

// NewContext creates a compilation context with the primitive types
// installed.
func NewContext() *Context {
	return &Context{
		Types:    NewTypeTable(),
		Arena:    NewArena(),
		Registry: NewDepNodeRegistry(),
	}
}

// Lower takes a parsed program through the middle end: it builds the
// dependency graph over the top-level declarations and lowers them into a
// fully-typed THIR in dependency order. On success ctx.Program holds the
// root.
func (ctx *Context) Lower(prog *ASTProgram) (*THIR, error) {
	ctx.Graph = BuildDepGraph(prog, ctx.Registry)
	program, err := GenerateTHIR(ctx.Types, ctx.Arena, ctx.Graph, ctx.Registry)
	if err != nil {
		return nil, err
	}
	ctx.Program = program
	return program, nil
}

// EntryFunction returns the THIR of the function marked @entry, or an
// EntryPointMissing error.
func (ctx *Context) EntryFunction() (*THIR, error) {
	for _, stmt := range ctx.Program.Statements {
		if stmt.Kind == THIRFunction && stmt.IsEntry {
			return stmt, nil
		}
	}
	return nil, &Error{Kind: EntryPointMissing, Msg: "no function is marked @entry"}
}

// CompileSource runs the full front and middle end over src: parse, graph
// build, dependency-ordered lowering. filename is used in diagnostics only.
func CompileSource(ctx *Context, filename, src string) (*THIR, error) {
	prog, err := Parse(filename, src)
	if err != nil {
		return nil, err
	}
	return ctx.Lower(prog)
}

// CompileFile is CompileSource over the contents of path.
func CompileFile(ctx *Context, path string) (*THIR, error) {
	text, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	return CompileSource(ctx, path, string(text))
}
