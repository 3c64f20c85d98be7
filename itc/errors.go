package itc

import (
	"fmt"
	"text/scanner"
)

// ErrorKind classifies the ways a compilation can fail. The set is closed;
// every diagnostic the compiler reports carries exactly one of these.
type ErrorKind int

const (
	// SyntaxError is reported by the lexer and parser.
	SyntaxError ErrorKind = iota
	// UnknownName: an identifier, call or type reference not found in any
	// enclosing scope.
	UnknownName
	// UnknownMember: a member access where the struct has no such field.
	UnknownMember
	// Redeclaration: the name already exists in the same scope.
	Redeclaration
	// TypeMismatch: operand, initializer, argument or return types disagree.
	TypeMismatch
	// WrongArity: a non-variadic call whose argument count differs from the
	// signature, or a variadic call with too few arguments.
	WrongArity
	// NotCallable: the call target's resolved type is not a function.
	NotCallable
	// NotAssignable: the assignment left operand is not an lvalue form.
	NotAssignable
	// CyclicDependency: lowering re-entered a declaration that is still being
	// lowered.
	CyclicDependency
	// EntryPointMissing: no function is marked @entry.
	EntryPointMissing
)

func (k ErrorKind) String() string {
	switch k {
	case SyntaxError:
		return "syntax error"
	case UnknownName:
		return "unknown name"
	case UnknownMember:
		return "unknown member"
	case Redeclaration:
		return "redeclaration"
	case TypeMismatch:
		return "type mismatch"
	case WrongArity:
		return "wrong arity"
	case NotCallable:
		return "not callable"
	case NotAssignable:
		return "not assignable"
	case CyclicDependency:
		return "cyclic dependency"
	case EntryPointMissing:
		return "entry point missing"
	}
	return fmt.Sprintf("errorkind(%d)", int(k))
}

// Error is a compilation diagnostic. The first Error raised aborts the
// compilation; there is no recovery.
type Error struct {
	Kind ErrorKind
	// Pos is the source location the diagnostic points at.
	Pos scanner.Position
	// Msg is a one-line human-readable description.
	Msg string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Pos, e.Kind, e.Msg)
}

// errorf raises a compilation diagnostic. It panics with an *Error; the
// exported entry points recover it into an ordinary error return. Deep in the
// lowering recursion this is far simpler than threading an error value
// through every visit.
func errorf(kind ErrorKind, pos scanner.Position, format string, args ...interface{}) {
	panic(&Error{Kind: kind, Pos: pos, Msg: fmt.Sprintf(format, args...)})
}

// recoverError converts a panic raised by errorf back into an error. Any
// other panic value is re-raised.
func recoverError(err *error) {
	switch v := recover().(type) {
	case nil:
	case *Error:
		*err = v
	default:
		panic(v)
	}
}
