package itc

import (
	"encoding/binary"
	"strings"

	"github.com/grailbio/base/log"
	"github.com/grailbio/itc/symbol"
	"github.com/spaolacci/murmur3"
)

// TypeID is a dense index into the type table. Ids are assigned on interning
// and stable for the duration of a compilation.
type TypeID int

// InvalidType is the zero TypeID's companion sentinel for "not yet typed"
// slots inside the compiler. It never appears in a completed THIR.
const InvalidType = TypeID(-1)

// The four primitives occupy the first table slots, in this order.
const (
	VoidID TypeID = iota
	I32ID
	F32ID
	StringID
	numPrimitives
)

// TypeKind discriminates the Type payload.
type TypeKind byte

const (
	// VoidKind, I32Kind, F32Kind and StringKind are the builtin primitives.
	VoidKind TypeKind = iota
	I32Kind
	F32Kind
	StringKind
	// StructKind is a user "type" declaration. Nominally identified.
	StructKind
	// FuncKind is a function signature. Structurally interned.
	FuncKind
)

func (k TypeKind) String() string {
	switch k {
	case VoidKind:
		return "void"
	case I32Kind:
		return "i32"
	case F32Kind:
		return "f32"
	case StringKind:
		return "String"
	case StructKind:
		return "struct"
	case FuncKind:
		return "fn"
	}
	return "invalid"
}

// Member is one struct member. Members are stored in declaration order; a
// member's index is its declaration-order position.
type Member struct {
	Name symbol.ID
	Type TypeID
}

// Type is one entry of the type table.
type Type struct {
	ID   TypeID
	Kind TypeKind

	// Name is set for primitives and structs. Function types are anonymous.
	Name symbol.ID

	// Decl is the declaring AST node, when there is one. Descriptive only; it
	// takes no part in identity.
	Decl ASTNode

	// Members is the struct payload.
	Members []Member

	// Return, Params and Varargs are the function payload. Two function types
	// agreeing on all three share one id.
	Return  TypeID
	Params  []TypeID
	Varargs bool
}

// TypeTable interns every type of one compilation and assigns dense ids.
// Append-only: types are never removed or mutated after their members are
// complete.
type TypeTable struct {
	types []*Type

	// funcIndex buckets function types by signature hash. The buckets hold
	// candidate ids; structural comparison decides.
	funcIndex map[uint64][]TypeID
}

// NewTypeTable returns a table with the primitives installed.
func NewTypeTable() *TypeTable {
	tab := &TypeTable{funcIndex: map[uint64][]TypeID{}}
	tab.InstallPrimitives()
	return tab
}

// InstallPrimitives ensures void, i32, f32 and String occupy the first ids.
// Idempotent.
func (tab *TypeTable) InstallPrimitives() {
	if len(tab.types) >= int(numPrimitives) {
		return
	}
	for _, p := range []struct {
		name string
		kind TypeKind
	}{
		{"void", VoidKind},
		{"i32", I32Kind},
		{"f32", F32Kind},
		{"String", StringKind},
	} {
		typ := &Type{ID: TypeID(len(tab.types)), Kind: p.kind, Name: symbol.Intern(p.name)}
		tab.types = append(tab.types, typ)
	}
}

// Len reports the number of interned types.
func (tab *TypeTable) Len() int { return len(tab.types) }

// Get returns the type with the given id.
func (tab *TypeTable) Get(id TypeID) *Type {
	if id < 0 || int(id) >= len(tab.types) {
		log.Panicf("typetable: id %d out of range [0,%d)", id, len(tab.types))
	}
	return tab.types[id]
}

// FindByName returns the primitive or struct with the given name, or nil.
// Nil means the name is not (yet) a type; callers treat that as an
// unresolved dependency, not a hard error.
func (tab *TypeTable) FindByName(name symbol.ID) *Type {
	for _, typ := range tab.types {
		if typ.Kind != FuncKind && typ.Name == name {
			return typ
		}
	}
	return nil
}

// CreateStruct appends a new, empty struct type. Members must be appended
// before the type is referenced by lowering.
func (tab *TypeTable) CreateStruct(decl ASTNode, name symbol.ID) *Type {
	typ := &Type{
		ID:   TypeID(len(tab.types)),
		Kind: StructKind,
		Name: name,
		Decl: decl,
	}
	tab.types = append(tab.types, typ)
	return typ
}

// FindOrCreateFunc interns the function type (ret, params, varargs). Two
// signatures agreeing on return type, parameter sequence and the varargs flag
// share one id. The bool result is true iff a new type was appended, in which
// case the table takes ownership of params.
func (tab *TypeTable) FindOrCreateFunc(ret TypeID, params []TypeID, varargs bool) (*Type, bool) {
	h := funcSignatureHash(ret, params, varargs)
	for _, id := range tab.funcIndex[h] {
		typ := tab.types[id]
		if funcSignatureEqual(typ, ret, params, varargs) {
			return typ, false
		}
	}
	typ := &Type{
		ID:      TypeID(len(tab.types)),
		Kind:    FuncKind,
		Return:  ret,
		Params:  params,
		Varargs: varargs,
	}
	tab.types = append(tab.types, typ)
	tab.funcIndex[h] = append(tab.funcIndex[h], typ.ID)
	return typ, true
}

func funcSignatureEqual(typ *Type, ret TypeID, params []TypeID, varargs bool) bool {
	if typ.Return != ret || typ.Varargs != varargs || len(typ.Params) != len(params) {
		return false
	}
	for i, p := range typ.Params {
		if p != params[i] {
			return false
		}
	}
	return true
}

func funcSignatureHash(ret TypeID, params []TypeID, varargs bool) uint64 {
	h := murmur3.New64()
	var buf [8]byte
	put := func(v uint64) {
		binary.LittleEndian.PutUint64(buf[:], v)
		h.Write(buf[:]) // nolint: errcheck
	}
	put(uint64(ret))
	for _, p := range params {
		put(uint64(p))
	}
	if varargs {
		put(1)
	}
	return h.Sum64()
}

// MemberIndex returns the declaration-order index of the struct member, or
// -1 when the type has no such member.
func (tab *TypeTable) MemberIndex(typ *Type, name symbol.ID) int {
	for i, m := range typ.Members {
		if m.Name == name {
			return i
		}
	}
	return -1
}

// String renders the type with the given id for diagnostics.
func (tab *TypeTable) String(id TypeID) string {
	if id == InvalidType {
		return "(untyped)"
	}
	typ := tab.Get(id)
	switch typ.Kind {
	case StructKind:
		return "struct " + typ.Name.Str()
	case FuncKind:
		buf := strings.Builder{}
		buf.WriteString("fn(")
		for i, p := range typ.Params {
			if i > 0 {
				buf.WriteString(", ")
			}
			buf.WriteString(tab.String(p))
		}
		if typ.Varargs {
			if len(typ.Params) > 0 {
				buf.WriteString(", ")
			}
			buf.WriteString("...")
		}
		buf.WriteString(") -> ")
		buf.WriteString(tab.String(typ.Return))
		return buf.String()
	default:
		return typ.Name.Str()
	}
}
