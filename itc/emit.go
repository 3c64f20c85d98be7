package itc

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/grailbio/base/log"
)

// emitter turns a completed THIR program into textual LLVM IR. It walks
// Program.Statements in order and relies on the lowering guarantees: every
// node is typed, identifier and callee back-references are non-nil and point
// at already-lowered THIR.
type emitter struct {
	types *TypeTable

	body bytes.Buffer // function definitions
	strs []string     // collected string literal constants

	// slots maps a variable or parameter declaration to the register holding
	// its stack slot.
	slots  map[*THIR]string
	tmp    int
	labels int
}

// EmitLLVM renders the program as an LLVM IR module.
func EmitLLVM(types *TypeTable, program *THIR) string {
	e := &emitter{types: types, slots: map[*THIR]string{}}

	out := bytes.Buffer{}
	// Struct types first. Program statements are in dependency order, so a
	// struct's member types are always defined before it.
	for _, stmt := range program.Statements {
		if stmt.Kind == THIRTypeDecl {
			fields := []string{}
			for _, m := range stmt.Members {
				fields = append(fields, e.llvmType(m.Type))
			}
			fmt.Fprintf(&out, "%%struct.%s = type { %s }\n", stmt.Name.Str(), strings.Join(fields, ", "))
		}
	}

	for _, stmt := range program.Statements {
		if stmt.Kind == THIRFunction {
			e.emitFunction(stmt)
		}
	}

	for _, s := range e.strs {
		out.WriteString(s)
	}
	out.Write(e.body.Bytes())
	return out.String()
}

func (e *emitter) llvmType(id TypeID) string {
	typ := e.types.Get(id)
	switch typ.Kind {
	case VoidKind:
		return "void"
	case I32Kind:
		return "i32"
	case F32Kind:
		return "float"
	case StringKind:
		return "ptr"
	case StructKind:
		return "%struct." + typ.Name.Str()
	}
	log.Panicf("emit: no llvm rendering for %s", e.types.String(id))
	return ""
}

func (e *emitter) newTmp() string {
	e.tmp++
	return fmt.Sprintf("%%t%d", e.tmp)
}

func (e *emitter) ins(format string, args ...interface{}) {
	fmt.Fprintf(&e.body, "  "+format+"\n", args...)
}

func (e *emitter) emitFunction(fn *THIR) {
	fnType := e.types.Get(fn.Type)

	name := fn.Name.Str()
	retType := e.llvmType(fnType.Return)
	if fn.IsEntry {
		// The entry function becomes the C main.
		name = "main"
		retType = "i32"
	}

	params := []string{}
	i := 0
	for _, p := range fn.Params {
		if p.IsVarargs {
			params = append(params, "...")
			continue
		}
		params = append(params, fmt.Sprintf("%s %%arg%d", e.llvmType(p.Type), i))
		i++
	}

	if fn.IsExtern {
		// A declaration lists parameter types only.
		declParams := []string{}
		for _, p := range fn.Params {
			if p.IsVarargs {
				declParams = append(declParams, "...")
			} else {
				declParams = append(declParams, e.llvmType(p.Type))
			}
		}
		fmt.Fprintf(&e.body, "declare %s @%s(%s)\n\n", retType, name, strings.Join(declParams, ", "))
		return
	}

	e.tmp = 0
	e.labels = 0
	fmt.Fprintf(&e.body, "define %s @%s(%s) {\n", retType, name, strings.Join(params, ", "))

	// Give every parameter a stack slot so that identifier references go
	// through the same load path as variables.
	i = 0
	for _, p := range fn.Params {
		if p.IsVarargs {
			continue
		}
		slot := fmt.Sprintf("%%%s.addr", p.Name.Str())
		e.ins("%s = alloca %s", slot, e.llvmType(p.Type))
		e.ins("store %s %%arg%d, ptr %s", e.llvmType(p.Type), i, slot)
		e.slots[p.Decl] = slot
		i++
	}

	e.emitStmt(fn, fn.Body)

	// Fall off the end: void functions return implicitly, the entry function
	// reports success.
	if fn.IsEntry {
		e.ins("ret i32 0")
	} else if fnType.Return == VoidID {
		e.ins("ret void")
	} else {
		e.ins("unreachable")
	}
	e.body.WriteString("}\n\n")
}

func (e *emitter) emitStmt(fn *THIR, stmt *THIR) {
	switch stmt.Kind {
	case THIRBlock:
		for _, s := range stmt.Statements {
			e.emitStmt(fn, s)
		}
	case THIRVarDecl:
		slot := e.newTmp()
		e.ins("%s = alloca %s", slot, e.llvmType(stmt.Type))
		e.slots[stmt] = slot
		if stmt.Expr != nil {
			val := e.emitExpr(stmt.Expr)
			e.ins("store %s %s, ptr %s", e.llvmType(stmt.Type), val, slot)
		}
	case THIRReturn:
		if fn.IsEntry {
			e.ins("ret i32 0")
		} else if stmt.Expr == nil {
			e.ins("ret void")
		} else {
			val := e.emitExpr(stmt.Expr)
			e.ins("ret %s %s", e.llvmType(stmt.Expr.Type), val)
		}
		// A ret ends the basic block; open a fresh one so that whatever the
		// walk emits next (dead code included) is well formed.
		e.labels++
		fmt.Fprintf(&e.body, "cont%d:\n", e.labels)
	default:
		e.emitExpr(stmt)
	}
}

// emitExpr emits the instructions computing expr and returns the value
// operand (a register or an immediate).
func (e *emitter) emitExpr(expr *THIR) string {
	switch expr.Kind {
	case THIRNumber:
		if expr.IsFloat {
			return llvmFloatLiteral(expr.Text)
		}
		return expr.Text

	case THIRString:
		return e.stringConstant(expr.Text)

	case THIRIdentifier:
		slot := e.addr(expr)
		tmp := e.newTmp()
		e.ins("%s = load %s, ptr %s", tmp, e.llvmType(expr.Type), slot)
		return tmp

	case THIRMemberAccess:
		ptr := e.addr(expr)
		tmp := e.newTmp()
		e.ins("%s = load %s, ptr %s", tmp, e.llvmType(expr.Type), ptr)
		return tmp

	case THIRCall:
		return e.emitCall(expr)

	case THIRBinary:
		if expr.Op == tokAssign {
			dst := e.addr(expr.Left)
			val := e.emitExpr(expr.Right)
			e.ins("store %s %s, ptr %s", e.llvmType(expr.Right.Type), val, dst)
			return val
		}
		return e.emitBinary(expr)
	}
	log.Panicf("emit: unexpected expression kind %s", expr.Kind)
	return ""
}

// addr returns a pointer operand for an lvalue form.
func (e *emitter) addr(expr *THIR) string {
	switch expr.Kind {
	case THIRIdentifier:
		slot, ok := e.slots[expr.Resolved]
		if !ok {
			log.Panicf("emit: %s has no stack slot", expr.Name.Str())
		}
		return slot
	case THIRMemberAccess:
		base := e.addr(expr.Base)
		tmp := e.newTmp()
		e.ins("%s = getelementptr inbounds %s, ptr %s, i32 0, i32 %d",
			tmp, e.llvmType(expr.Base.Type), base, expr.MemberIndex)
		return tmp
	}
	log.Panicf("emit: %s is not an lvalue form", expr.Kind)
	return ""
}

func (e *emitter) emitCall(call *THIR) string {
	fnType := e.types.Get(call.Callee.Type)
	args := []string{}
	for _, a := range call.Args {
		val := e.emitExpr(a)
		args = append(args, e.llvmType(a.Type)+" "+val)
	}

	// Variadic callees need the full signature at the call site.
	callee := "@" + call.Callee.Name.Str()
	sig := e.llvmType(fnType.Return)
	if fnType.Varargs {
		ptypes := []string{}
		for _, p := range fnType.Params {
			ptypes = append(ptypes, e.llvmType(p))
		}
		ptypes = append(ptypes, "...")
		sig = fmt.Sprintf("%s (%s)", sig, strings.Join(ptypes, ", "))
	}

	if fnType.Return == VoidID {
		e.ins("call %s %s(%s)", sig, callee, strings.Join(args, ", "))
		return ""
	}
	tmp := e.newTmp()
	e.ins("%s = call %s %s(%s)", tmp, sig, callee, strings.Join(args, ", "))
	return tmp
}

var intBinaryOps = map[TokenKind]string{
	tokAdd: "add",
	tokSub: "sub",
	tokMul: "mul",
	tokDiv: "sdiv",
	tokMod: "srem",
	tokAnd: "and",
	tokOr:  "or",
	tokXor: "xor",
	tokShl: "shl",
	tokShr: "ashr",
}

var floatBinaryOps = map[TokenKind]string{
	tokAdd: "fadd",
	tokSub: "fsub",
	tokMul: "fmul",
	tokDiv: "fdiv",
	tokMod: "frem",
}

var intCompareOps = map[TokenKind]string{
	tokEQ:  "eq",
	tokNEQ: "ne",
	tokLT:  "slt",
	tokGT:  "sgt",
	tokLTE: "sle",
	tokGTE: "sge",
}

func (e *emitter) emitBinary(expr *THIR) string {
	left := e.emitExpr(expr.Left)
	right := e.emitExpr(expr.Right)
	operandType := e.llvmType(expr.Left.Type)
	isFloat := expr.Left.Type == F32ID

	if op, ok := intCompareOps[expr.Op]; ok {
		tmp := e.newTmp()
		if isFloat {
			e.ins("%s = fcmp o%s %s %s, %s", tmp, op[len(op)-2:], operandType, left, right)
		} else {
			e.ins("%s = icmp %s %s %s, %s", tmp, op, operandType, left, right)
		}
		// The language has no bool; a comparison has its operands' type, so
		// the i1 widens back to float for f32 operands and to i32 otherwise.
		wide := e.newTmp()
		if isFloat {
			e.ins("%s = uitofp i1 %s to float", wide, tmp)
		} else {
			e.ins("%s = zext i1 %s to i32", wide, tmp)
		}
		return wide
	}

	ops := intBinaryOps
	if isFloat {
		ops = floatBinaryOps
	}
	op, ok := ops[expr.Op]
	if !ok {
		// && and || without an instruction of their own reduce to bitwise
		// forms. Lowering only checks that the operand types agree, so any
		// other operator with no instruction for the operand type panics here.
		switch expr.Op {
		case tokLogicalAnd:
			op = "and"
		case tokLogicalOr:
			op = "or"
		default:
			log.Panicf("emit: no instruction for operator %s on %s", opText(expr.Op), operandType)
		}
	}
	tmp := e.newTmp()
	e.ins("%s = %s %s %s, %s", tmp, op, operandType, left, right)
	return tmp
}

func (e *emitter) stringConstant(text string) string {
	// C-escape and NUL-terminate.
	unquoted := decodeEscapes(text)
	name := fmt.Sprintf("@.str.%d", len(e.strs))
	enc := bytes.Buffer{}
	for i := 0; i < len(unquoted); i++ {
		c := unquoted[i]
		if c >= 0x20 && c != '"' && c != '\\' && c < 0x7f {
			enc.WriteByte(c)
		} else {
			fmt.Fprintf(&enc, "\\%02X", c)
		}
	}
	e.strs = append(e.strs, fmt.Sprintf("%s = private unnamed_addr constant [%d x i8] c\"%s\\00\"\n",
		name, len(unquoted)+1, enc.String()))
	return name
}

// decodeEscapes resolves the standard escapes of a string literal's raw text.
func decodeEscapes(text string) string {
	buf := strings.Builder{}
	for i := 0; i < len(text); i++ {
		c := text[i]
		if c != '\\' || i+1 >= len(text) {
			buf.WriteByte(c)
			continue
		}
		i++
		switch text[i] {
		case 'n':
			buf.WriteByte('\n')
		case 't':
			buf.WriteByte('\t')
		case 'r':
			buf.WriteByte('\r')
		case '0':
			buf.WriteByte(0)
		default:
			buf.WriteByte(text[i])
		}
	}
	return buf.String()
}

// llvmFloatLiteral renders a source float literal in LLVM's hexadecimal
// form. The value is rounded through float32 first so the double constant is
// exactly representable in the float type.
func llvmFloatLiteral(text string) string {
	v, err := strconv.ParseFloat(text, 32)
	if err != nil {
		log.Panicf("emit: bad float literal %q: %v", text, err)
	}
	return fmt.Sprintf("0x%016X", math.Float64bits(float64(float32(v))))
}
