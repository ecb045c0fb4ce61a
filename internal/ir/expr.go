// Package ir defines the three-address, labeled intermediate representation
// that IR lowering produces and the summary engine consumes. Per the
// "tagged variants over inheritance" design note, Stmt and Expr are closed
// sum types: a Kind discriminator field plus an exhaustive switch at each
// use site, rather than a class hierarchy with virtual dispatch.
package ir

import "fmt"

// Temp names a temporary or user-declared local introduced by lowering.
type Temp string

// ExprKind discriminates the Expr variants.
type ExprKind int

const (
	ExprName ExprKind = iota
	ExprAccess
	ExprIndex
	ExprNew
	ExprCast
	ExprBinary
	ExprUnary
	ExprLiteral
	ExprInstanceOf
	ExprStaticAccess
)

// Expr is an IR expression. Every non-trivial subexpression has already
// been lowered through a temporary by the time it appears here (see
// internal/lowering), so Expr trees are shallow: at most one level beyond
// a Name/Literal operand.
type Expr struct {
	Kind ExprKind

	// ExprName
	Name Temp

	// ExprAccess: Base.Field
	Base  Temp
	Field string

	// ExprStaticAccess: a static field reference, the instance-less
	// counterpart of ExprAccess — no base instance to compute, so FQN
	// carries the fully qualified "ClassName.Field" name directly.
	FQN string

	// ExprIndex: Base[Index]
	Index Temp

	// ExprNew: new Type[dims...] or new Type()
	Type string
	Dims []Temp

	// ExprCast, ExprInstanceOf: (Type) Operand / Operand instanceof Type
	Operand Temp

	// ExprBinary: Left Op Right
	Op    string
	Left  Temp
	Right Temp

	// ExprLiteral
	Literal any
}

func Name(t Temp) Expr { return Expr{Kind: ExprName, Name: t} }

func Access(base Temp, field string) Expr {
	return Expr{Kind: ExprAccess, Base: base, Field: field}
}

// StaticAccess constructs a reference to the static field named fqn
// ("ClassName.Field").
func StaticAccess(fqn string) Expr { return Expr{Kind: ExprStaticAccess, FQN: fqn} }

func Index(base, index Temp) Expr {
	return Expr{Kind: ExprIndex, Base: base, Index: index}
}

func New(typ string, dims []Temp) Expr {
	return Expr{Kind: ExprNew, Type: typ, Dims: dims}
}

func Cast(typ string, operand Temp) Expr {
	return Expr{Kind: ExprCast, Type: typ, Operand: operand}
}

func Binary(op string, left, right Temp) Expr {
	return Expr{Kind: ExprBinary, Op: op, Left: left, Right: right}
}

func Unary(op string, operand Temp) Expr {
	return Expr{Kind: ExprUnary, Op: op, Operand: operand}
}

func Literal(v any) Expr { return Expr{Kind: ExprLiteral, Literal: v} }

func InstanceOf(operand Temp, typ string) Expr {
	return Expr{Kind: ExprInstanceOf, Operand: operand, Type: typ}
}

func (e Expr) String() string {
	switch e.Kind {
	case ExprName:
		return string(e.Name)
	case ExprAccess:
		return fmt.Sprintf("%s.%s", e.Base, e.Field)
	case ExprStaticAccess:
		return e.FQN
	case ExprIndex:
		return fmt.Sprintf("%s[%s]", e.Base, e.Index)
	case ExprNew:
		out := "new " + e.Type
		for _, d := range e.Dims {
			out += "[" + string(d) + "]"
		}
		return out
	case ExprCast:
		return fmt.Sprintf("(%s)%s", e.Type, e.Operand)
	case ExprBinary:
		return fmt.Sprintf("%s %s %s", e.Left, e.Op, e.Right)
	case ExprUnary:
		return fmt.Sprintf("%s%s", e.Op, e.Operand)
	case ExprLiteral:
		return fmt.Sprintf("%v", e.Literal)
	case ExprInstanceOf:
		return fmt.Sprintf("%s instanceof %s", e.Operand, e.Type)
	default:
		return "<invalid-expr>"
	}
}
