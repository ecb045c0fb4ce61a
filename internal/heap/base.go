// Package heap implements the symbolic heap access-path algebra (HeapBase)
// and the HeapMap that tracks which abstract instances are aliases of
// which symbolic paths.
package heap

import (
	"fmt"
	"strings"
)

// RootKind discriminates the four HeapBase roots.
type RootKind int

const (
	RootThis RootKind = iota
	RootArg
	RootGlobal
	RootRet
)

func (k RootKind) String() string {
	switch k {
	case RootThis:
		return "this"
	case RootArg:
		return "arg"
	case RootGlobal:
		return "global"
	case RootRet:
		return "ret"
	default:
		return "<invalid-root>"
	}
}

// Root is the symbolic root of a HeapBase: this, arg(i), global(fqn), or ret.
type Root struct {
	Kind  RootKind
	Index int    // RootArg: parameter index.
	FQN   string // RootGlobal: fully qualified static field name.
}

func This() Root             { return Root{Kind: RootThis} }
func Arg(i int) Root         { return Root{Kind: RootArg, Index: i} }
func Global(fqn string) Root { return Root{Kind: RootGlobal, FQN: fqn} }
func Ret() Root              { return Root{Kind: RootRet} }

func (r Root) String() string {
	switch r.Kind {
	case RootThis:
		return "this"
	case RootArg:
		return fmt.Sprintf("arg(%d)", r.Index)
	case RootGlobal:
		return fmt.Sprintf("global(%s)", r.FQN)
	case RootRet:
		return "ret"
	default:
		return "<invalid-root>"
	}
}

// AccessKind discriminates the access-list element variants.
type AccessKind int

const (
	AccessField AccessKind = iota
	AccessArray
	AccessMap
)

// Access is one element of a HeapBase's access list: a field, array, or
// map access appended to a root. HasMapKey is false (and MapKeyExpr empty)
// for the key-less "all related heap instances" over-approximation.
type Access struct {
	Kind       AccessKind
	FieldName  string // AccessField
	MapKeyExpr string // AccessMap: a textual rendering of the key, if known.
	HasMapKey  bool
}

func FieldAcc(name string) Access { return Access{Kind: AccessField, FieldName: name} }
func ArrayAcc() Access            { return Access{Kind: AccessArray} }
func MapAcc(key string, has bool) Access {
	return Access{Kind: AccessMap, MapKeyExpr: key, HasMapKey: has}
}

func (a Access) String() string {
	switch a.Kind {
	case AccessField:
		return "." + a.FieldName
	case AccessArray:
		return "[*]"
	case AccessMap:
		if a.HasMapKey {
			return "[" + a.MapKeyExpr + "]"
		}
		return "[*]"
	default:
		return "<invalid-access>"
	}
}

// Base is a symbolic access path rooted at This/Arg/Global/Ret, suffixed
// by an ordered access list. Composition (Make) appends to the access
// list and always preserves the root.
type Base struct {
	Root   Root
	Access []Access
}

// NewBase constructs a bare root with an empty access list.
func NewBase(root Root) Base { return Base{Root: root} }

// Make returns a new Base with suffix appended to the access list.
// Composition is associative and never mutates the receiver's slice.
func (b Base) Make(suffix Access) Base {
	access := make([]Access, len(b.Access)+1)
	copy(access, b.Access)
	access[len(b.Access)] = suffix
	return Base{Root: b.Root, Access: access}
}

// MakeAll appends a sequence of suffixes in order, equivalent to repeated
// Make calls; used when composing a caller's base with a callee's whole
// suffix list during root substitution.
func (b Base) MakeAll(suffixes []Access) Base {
	out := b
	for _, s := range suffixes {
		out = out.Make(s)
	}
	return out
}

func (b Base) String() string {
	var sb strings.Builder
	sb.WriteString(b.Root.String())
	for _, a := range b.Access {
		sb.WriteString(a.String())
	}
	return sb.String()
}

// Equal reports structural equality of two bases. Base holds a slice and
// so is not comparable with ==; Equal compares root and access list.
func (b Base) Equal(o Base) bool {
	if b.Root != o.Root || len(b.Access) != len(o.Access) {
		return false
	}
	for i := range b.Access {
		if b.Access[i] != o.Access[i] {
			return false
		}
	}
	return true
}
