package itc

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/grailbio/itc/symbol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lower(t *testing.T, src string) (*Context, *THIR) {
	ctx := NewContext()
	program, err := CompileSource(ctx, "test.it", src)
	require.NoError(t, err)
	return ctx, program
}

func lowerErr(t *testing.T, src string) *Error {
	ctx := NewContext()
	_, err := CompileSource(ctx, "test.it", src)
	require.Error(t, err)
	cerr, ok := err.(*Error)
	require.True(t, ok, "unexpected error type %T: %v", err, err)
	return cerr
}

// declNames lists the top-level declarations of the lowered program in
// statement order.
func declNames(program *THIR) []string {
	var names []string
	for _, stmt := range program.Statements {
		names = append(names, stmt.Name.Str())
	}
	return names
}

// walkTHIR visits every node reachable from root.
func walkTHIR(root *THIR, visit func(*THIR)) {
	if root == nil {
		return
	}
	visit(root)
	for _, s := range root.Statements {
		walkTHIR(s, visit)
	}
	walkTHIR(root.Expr, visit)
	for _, a := range root.Args {
		walkTHIR(a, visit)
	}
	walkTHIR(root.Left, visit)
	walkTHIR(root.Right, visit)
	walkTHIR(root.Base, visit)
	walkTHIR(root.Body, visit)
}

// findDecl returns the top-level declaration with the given name.
func findDecl(t *testing.T, program *THIR, name string) *THIR {
	for _, stmt := range program.Statements {
		if stmt.Name == symbol.Intern(name) {
			return stmt
		}
	}
	t.Fatalf("declaration %s not lowered", name)
	return nil
}

func TestForwardReference(t *testing.T) {
	// Source order lists the callee last; lowering order puts it first.
	_, program := lower(t, `
fn main() @entry { a(); }
fn a() { b(); }
fn b() i32 @extern;
`)
	if diff := cmp.Diff([]string{"b", "a", "main"}, declNames(program)); diff != "" {
		t.Error(diff)
	}

	a := findDecl(t, program, "a")
	call := a.Body.Statements[0]
	require.Equal(t, THIRCall, call.Kind)
	assert.Equal(t, findDecl(t, program, "b"), call.Callee)
	assert.Equal(t, I32ID, call.Type)
}

func TestSourceOrderAlreadyDependencyOrdered(t *testing.T) {
	_, program := lower(t, `
fn b() i32 @extern;
fn a() { b(); }
fn main() @entry { a(); }
`)
	if diff := cmp.Diff([]string{"b", "a", "main"}, declNames(program)); diff != "" {
		t.Error(diff)
	}
}

func TestNestedStructField(t *testing.T) {
	ctx, program := lower(t, `
type Vector_3 ( Vector_2 xy, i32 z );
type Vector_2 ( i32 x, i32 y );
`)
	assert.Equal(t, []string{"Vector_2", "Vector_3"}, declNames(program))

	v2 := ctx.Types.FindByName(symbol.Intern("Vector_2"))
	v3 := ctx.Types.FindByName(symbol.Intern("Vector_3"))
	require.NotNil(t, v2)
	require.NotNil(t, v3)
	assert.Equal(t, v2.ID, v3.Members[0].Type)
	assert.Equal(t, 1, ctx.Types.MemberIndex(v3, symbol.Intern("z")))
	assert.Equal(t, 0, ctx.Types.MemberIndex(v3, symbol.Intern("xy")))
}

const vectorPrelude = `
type Vector_2 ( i32 x, i32 y );
type Vector_3 ( Vector_2 xy, i32 z );
fn printf(String fmt, ...) @extern;
`

func TestMemberAssignment(t *testing.T) {
	_, program := lower(t, vectorPrelude+`
fn main() @entry {
  Vector_3 v;
  v.z = 100;
  printf("v.z = '%d'\n", v.z);
}
`)
	body := findDecl(t, program, "main").Body

	assign := body.Statements[1]
	require.Equal(t, THIRBinary, assign.Kind)
	assert.Equal(t, tokAssign, assign.Op)
	require.Equal(t, THIRMemberAccess, assign.Left.Kind)
	assert.Equal(t, 1, assign.Left.MemberIndex)
	assert.Equal(t, I32ID, assign.Left.Type)

	call := body.Statements[2]
	read := call.Args[1]
	require.Equal(t, THIRMemberAccess, read.Kind)
	assert.Equal(t, I32ID, read.Type)
	assert.Equal(t, "z", read.Member.Str())
}

func TestNestedMemberAccess(t *testing.T) {
	_, program := lower(t, vectorPrelude+`
fn main() @entry {
  Vector_3 v;
  v.xy.x = 1;
}
`)
	assign := findDecl(t, program, "main").Body.Statements[1]
	access := assign.Left
	require.Equal(t, THIRMemberAccess, access.Kind)
	assert.Equal(t, I32ID, access.Type)
	assert.Equal(t, 0, access.MemberIndex)
	require.Equal(t, THIRMemberAccess, access.Base.Kind)
	assert.Equal(t, "xy", access.Base.Member.Str())
}

func TestCycle(t *testing.T) {
	err := lowerErr(t, `
fn a() { b(); }
fn b() { a(); }
`)
	assert.Equal(t, CyclicDependency, err.Kind)
}

func TestSelfRecursion(t *testing.T) {
	// A direct self-call is not a dependency cycle: the graph drops
	// self-edges and the function's symbol is visible inside its own body.
	_, program := lower(t, `fn f() { f(); }`)
	f := findDecl(t, program, "f")
	call := f.Body.Statements[0]
	assert.Equal(t, f, call.Callee)
}

func TestWrongArity(t *testing.T) {
	err := lowerErr(t, `
fn f(i32 x) {}
fn main() @entry { f(); }
`)
	assert.Equal(t, WrongArity, err.Kind)

	err = lowerErr(t, `
fn f(i32 x) {}
fn main() @entry { f(1, 2); }
`)
	assert.Equal(t, WrongArity, err.Kind)
}

func TestVariadicCall(t *testing.T) {
	ctx, program := lower(t, `
fn printf(String fmt, ...) @extern;
fn main() @entry { printf("%d %d\n", 1, 2); }
`)
	printf := findDecl(t, program, "printf")
	typ := ctx.Types.Get(printf.Type)
	assert.True(t, typ.Varargs)
	require.Len(t, typ.Params, 1)
	assert.Equal(t, StringID, typ.Params[0])

	call := findDecl(t, program, "main").Body.Statements[0]
	require.Len(t, call.Args, 3)
	assert.Equal(t, VoidID, call.Type)
}

func TestVariadicTooFewArguments(t *testing.T) {
	err := lowerErr(t, `
fn printf(String fmt, ...) @extern;
fn main() @entry { printf(); }
`)
	assert.Equal(t, WrongArity, err.Kind)
}

func TestFunctionTypeSharing(t *testing.T) {
	ctx, program := lower(t, `
fn f(i32 x) i32 { return x; }
fn g(i32 y) i32 { return y; }
fn h(i32 z) {}
`)
	f := findDecl(t, program, "f")
	g := findDecl(t, program, "g")
	h := findDecl(t, program, "h")
	assert.Equal(t, f.Type, g.Type)
	assert.NotEqual(t, f.Type, h.Type)
	assert.Equal(t, "fn(i32) -> i32", ctx.Types.String(f.Type))
}

func TestTypedTHIRInvariants(t *testing.T) {
	ctx, program := lower(t, vectorPrelude+`
fn scale(i32 s) i32 { return s * 2; }
fn main() @entry {
  Vector_3 v;
  v.z = scale(50);
  printf("%d\n", v.z);
}
`)
	walkTHIR(program, func(n *THIR) {
		// Every node carries a valid type id.
		require.NotEqual(t, InvalidType, n.Type, "untyped node %s", n.Kind)
		ctx.Types.Get(n.Type)

		// Identifiers resolve to declarations and share their type.
		if n.Kind == THIRIdentifier {
			require.NotNil(t, n.Resolved)
			assert.Contains(t,
				[]THIRKind{THIRFunction, THIRVarDecl, THIRTypeDecl}, n.Resolved.Kind)
			assert.Equal(t, n.Resolved.Type, n.Type)
		}
		if n.Kind == THIRCall {
			require.NotNil(t, n.Callee)
		}
	})
}

func TestDepStatesAfterLowering(t *testing.T) {
	ctx := NewContext()
	prog := mustParse(t, `
fn b() i32 @extern;
fn a() { b(); }
`)
	_, err := ctx.Lower(prog)
	require.NoError(t, err)
	for _, n := range ctx.Registry.Nodes() {
		assert.Equal(t, Resolved, n.State)
		for _, d := range n.Deps {
			assert.Equal(t, Resolved, d.State)
		}
	}
}

func TestLoweringOrderInvariant(t *testing.T) {
	_, program := lower(t, `
fn main() @entry { helper(); }
fn helper() { leaf(); }
fn leaf() @extern;
`)
	index := map[string]int{}
	for i, name := range declNames(program) {
		index[name] = i
	}
	assert.Less(t, index["leaf"], index["helper"])
	assert.Less(t, index["helper"], index["main"])
}

func TestEmptyProgram(t *testing.T) {
	_, program := lower(t, "")
	assert.Equal(t, THIRProgram, program.Kind)
	assert.Empty(t, program.Statements)
}

func TestExternLowersWithoutBody(t *testing.T) {
	_, program := lower(t, `fn b(i32 x) i32 @extern;`)
	b := findDecl(t, program, "b")
	assert.True(t, b.IsExtern)
	assert.Nil(t, b.Body)
	require.Len(t, b.Params, 1)
	assert.Equal(t, I32ID, b.Params[0].Type)
}

func TestUnknownName(t *testing.T) {
	assert.Equal(t, UnknownName, lowerErr(t, `fn f() { nosuch(); }`).Kind)
	assert.Equal(t, UnknownName, lowerErr(t, `fn f() { x = 1; }`).Kind)
	assert.Equal(t, UnknownName, lowerErr(t, `fn f() { Widget w; }`).Kind)
	assert.Equal(t, UnknownName, lowerErr(t, `fn f() Widget {}`).Kind)
}

func TestUnknownMember(t *testing.T) {
	err := lowerErr(t, vectorPrelude+`
fn main() @entry {
  Vector_2 v;
  v.q = 1;
}
`)
	assert.Equal(t, UnknownMember, err.Kind)
}

func TestNotCallable(t *testing.T) {
	err := lowerErr(t, `
type T ( i32 a );
fn main() @entry { T(); }
`)
	assert.Equal(t, NotCallable, err.Kind)

	err = lowerErr(t, `
fn main() @entry {
  i32 x;
  x();
}
`)
	assert.Equal(t, NotCallable, err.Kind)
}

func TestNotAssignable(t *testing.T) {
	err := lowerErr(t, `
fn g() i32 @extern;
fn main() @entry { g() = 1; }
`)
	assert.Equal(t, NotAssignable, err.Kind)

	err = lowerErr(t, `fn main() @entry { 1 = 2; }`)
	assert.Equal(t, NotAssignable, err.Kind)
}

func TestTypeMismatch(t *testing.T) {
	// Initializer vs declared type.
	err := lowerErr(t, `fn f() { i32 x = "ten"; }`)
	assert.Equal(t, TypeMismatch, err.Kind)

	// Binary operands must agree.
	err = lowerErr(t, `fn f() { i32 x = 1 + "one"; }`)
	assert.Equal(t, TypeMismatch, err.Kind)

	// Integer and float literals do not mix.
	err = lowerErr(t, `fn f() { f32 x = 1; }`)
	assert.Equal(t, TypeMismatch, err.Kind)

	// Assignment through a member must match the member type.
	err = lowerErr(t, vectorPrelude+`
fn main() @entry {
  Vector_2 v;
  v.x = "one";
}
`)
	assert.Equal(t, TypeMismatch, err.Kind)
}

func TestArgumentTypeChecking(t *testing.T) {
	err := lowerErr(t, `
fn f(i32 x) {}
fn main() @entry { f("one"); }
`)
	assert.Equal(t, TypeMismatch, err.Kind)

	// Variadic tail slots are not checked, the fixed slots are.
	err = lowerErr(t, `
fn printf(String fmt, ...) @extern;
fn main() @entry { printf(1, 2); }
`)
	assert.Equal(t, TypeMismatch, err.Kind)
}

func TestReturnTypeChecking(t *testing.T) {
	err := lowerErr(t, `fn f() i32 { return "one"; }`)
	assert.Equal(t, TypeMismatch, err.Kind)

	err = lowerErr(t, `fn f() i32 { return; }`)
	assert.Equal(t, TypeMismatch, err.Kind)

	_, program := lower(t, `fn f() i32 { return 42; }`)
	ret := findDecl(t, program, "f").Body.Statements[0]
	require.Equal(t, THIRReturn, ret.Kind)
	assert.Equal(t, VoidID, ret.Type)
	assert.Equal(t, I32ID, ret.Expr.Type)
}

func TestLocalRedeclaration(t *testing.T) {
	err := lowerErr(t, `
fn f() {
  i32 x;
  i32 x;
}
`)
	assert.Equal(t, Redeclaration, err.Kind)

	err = lowerErr(t, `fn f(i32 x, i32 x) {}`)
	assert.Equal(t, Redeclaration, err.Kind)

	err = lowerErr(t, `type T ( i32 a, i32 a );`)
	assert.Equal(t, Redeclaration, err.Kind)
}

func TestShadowingInNestedBlock(t *testing.T) {
	_, program := lower(t, `
fn f() {
  i32 x = 1;
  {
    i32 x = 2;
    x = 3;
  }
}
`)
	body := findDecl(t, program, "f").Body
	inner := body.Statements[1]
	require.Equal(t, THIRBlock, inner.Kind)
	assign := inner.Statements[1]
	// The assignment resolves to the inner declaration.
	assert.Equal(t, inner.Statements[0], assign.Left.Resolved)
}

func TestParameterReferences(t *testing.T) {
	_, program := lower(t, `fn add(i32 a, i32 b) i32 { return a + b; }`)
	add := findDecl(t, program, "add")
	ret := add.Body.Statements[0]
	sum := ret.Expr
	require.Equal(t, THIRBinary, sum.Kind)
	assert.Equal(t, add.Params[0].Decl, sum.Left.Resolved)
	assert.Equal(t, add.Params[1].Decl, sum.Right.Resolved)
	assert.Equal(t, I32ID, sum.Type)
}

func TestFloatLiterals(t *testing.T) {
	_, program := lower(t, `fn f() { f32 x = 1.5; f32 y = x * 2.0; }`)
	body := findDecl(t, program, "f").Body
	assert.Equal(t, F32ID, body.Statements[0].Expr.Type)
	assert.Equal(t, F32ID, body.Statements[1].Expr.Type)
}

func TestStructInitializerMismatch(t *testing.T) {
	err := lowerErr(t, vectorPrelude+`
fn main() @entry {
  Vector_2 a;
  Vector_3 b = a;
}
`)
	assert.Equal(t, TypeMismatch, err.Kind)
}

func TestStructAssignment(t *testing.T) {
	_, program := lower(t, vectorPrelude+`
fn main() @entry {
  Vector_2 a;
  Vector_2 b;
  a = b;
  Vector_3 v;
  v.xy = a;
}
`)
	body := findDecl(t, program, "main").Body
	assign := body.Statements[2]
	require.Equal(t, THIRBinary, assign.Kind)
	assert.Equal(t, assign.Left.Type, assign.Right.Type)
}
