// Package ast defines the structured, pre-lowering source representation
// that internal/lowering consumes. It is not a parser: the engine treats
// AST construction as an external collaborator's responsibility; this
// package defines only the node shapes lowering depends on.
//
// Per the "tagged variants over inheritance" design note, Stmt and Expr
// are closed sum types — a Kind discriminator field plus an exhaustive
// switch at each use site — rather than an interface hierarchy relying on
// virtual dispatch.
package ast

import "github.com/jawa-analysis/heapsum/internal/token"

// Type is a source-level type reference, e.g. "Box", "int", "Object[]".
type Type struct {
	Name    string
	ArrayOf int // array dimension count; 0 for a scalar type
}

// Param is one formal parameter of a method declaration.
type Param struct {
	Name string
	Type Type
}

// Method is the structured-AST form of a single method body, the unit
// IR lowering consumes.
type Method struct {
	Signature  string
	Receiver   *Param // nil for a static method
	Params     []Param
	ReturnType Type
	IsVoid     bool
	Body       []Stmt
}

// StmtKind discriminates the Stmt variants.
type StmtKind int

const (
	StmtExpr StmtKind = iota
	StmtVarDecl
	StmtBlock
	StmtIf
	StmtWhile
	StmtDoWhile
	StmtFor
	StmtSwitch
	StmtBreak
	StmtContinue
	StmtReturn
	StmtThrow
	StmtTry
	StmtAssert
	StmtLabeled
)

// Stmt is a structured statement node.
type Stmt struct {
	Kind StmtKind
	Pos  token.Position

	// StmtExpr
	Expr Expr

	// StmtVarDecl
	VarName string
	VarType Type
	Init    Expr
	HasInit bool

	// StmtBlock
	Block []Stmt

	// StmtIf
	Cond Expr
	Then []Stmt
	Else []Stmt
	HasElse bool

	// StmtWhile, StmtDoWhile: Cond (above) + Body
	Body []Stmt

	// StmtFor
	ForInit   []Stmt
	ForCond   Expr
	HasForCond bool
	ForPost   []Stmt

	// StmtSwitch
	SwitchTag   Expr
	SwitchCases []SwitchCase

	// StmtBreak, StmtContinue
	TargetLabel string
	HasTarget   bool

	// StmtReturn
	ReturnValue Expr
	HasReturnValue bool

	// StmtThrow
	ThrowValue Expr

	// StmtTry
	TryBody    []Stmt
	Catches    []Catch
	Finally    []Stmt
	HasFinally bool

	// StmtAssert
	AssertCond    Expr
	AssertMessage Expr
	HasAssertMsg  bool

	// StmtLabeled
	Label  string
	Target *Stmt
}

// SwitchCase is one `case value:`/`default:` arm of a StmtSwitch.
type SwitchCase struct {
	Values    []Expr // empty for default
	IsDefault bool
	Body      []Stmt
}

// Catch is one `catch (Type name) { ... }` clause.
type Catch struct {
	ExceptionType Type
	VarName       string
	Body          []Stmt
}

// ExprKind discriminates the Expr variants.
type ExprKind int

const (
	ExprLiteral ExprKind = iota
	ExprName
	ExprFieldAccess
	ExprIndex
	ExprNew
	ExprNewArray
	ExprCast
	ExprInstanceOf
	ExprBinary
	ExprUnary
	ExprLogicalAnd
	ExprLogicalOr
	ExprTernary
	ExprAssign
	ExprCompoundAssign
	ExprPreIncDec
	ExprPostIncDec
	ExprCall
	ExprStaticFieldAccess
)

// Expr is a structured expression node.
type Expr struct {
	Kind ExprKind
	Pos  token.Position

	// ExprLiteral
	Literal any

	// ExprName
	Name string

	// ExprFieldAccess: Base.Field
	Base  *Expr
	Field string

	// ExprStaticFieldAccess: ClassName.Field — a static field reference,
	// the instance-less counterpart of ExprFieldAccess. Field (above) names
	// the static field.
	ClassName string

	// ExprIndex: Base[Index]
	Index *Expr

	// ExprNew: new Type(Args...)
	Type Type
	Args []Expr

	// ExprNewArray: new Type[Dims...]
	Dims []Expr

	// ExprCast, ExprInstanceOf: (Type) Operand / Operand instanceof Type
	Operand *Expr

	// ExprBinary, ExprLogicalAnd, ExprLogicalOr, ExprAssign,
	// ExprCompoundAssign: Left Op Right
	Op    string
	Left  *Expr
	Right *Expr

	// ExprUnary, ExprPreIncDec, ExprPostIncDec
	UnaryOp string

	// ExprTernary
	Cond *Expr
	Then *Expr
	Else *Expr

	// ExprCall
	Receiver       *Expr // nil for a static call
	CalleeSig      string
	CalleeStatic   bool
	CalleeDirect   bool // private/non-overridable instance method: no dispatch
	CalleeSuper    bool
	DeclaringIface bool // the declaring class is an interface
}
