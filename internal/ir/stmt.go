package ir

import (
	"fmt"

	"github.com/jawa-analysis/heapsum/internal/token"
)

// CallKind is the mandatory call-statement annotation determined by the
// receiver form and the callee's declaring-class modifiers.
type CallKind int

const (
	CallVirtual CallKind = iota
	CallInterface
	CallDirect
	CallSuper
	CallStatic
)

func (k CallKind) String() string {
	switch k {
	case CallVirtual:
		return "virtual"
	case CallInterface:
		return "interface"
	case CallDirect:
		return "direct"
	case CallSuper:
		return "super"
	case CallStatic:
		return "static"
	default:
		return "<invalid-call-kind>"
	}
}

// ReturnKind annotates a Return statement: object-returning or void.
type ReturnKind int

const (
	ReturnObject ReturnKind = iota
	ReturnVoid
)

func (k ReturnKind) String() string {
	if k == ReturnVoid {
		return "void"
	}
	return "object"
}

// StmtKind discriminates the Stmt variants.
type StmtKind int

const (
	StmtAssign StmtKind = iota
	StmtCall
	StmtIf
	StmtGoto
	StmtReturn
	StmtThrow
)

// Stmt is an IR statement occupying exactly one Location.
type Stmt struct {
	Kind StmtKind
	Pos  token.Position

	// StmtAssign: LHS := RHS. LHS is empty for a bare call statement routed
	// through StmtCall instead; StmtAssign's RHS may itself be a call
	// (Call != nil) or a plain Expr.
	LHS Expr
	RHS Expr

	// StmtCall, and StmtAssign when RHS is a call: the call payload.
	Call *Call

	// StmtIf: if Cond == 0 goto Target (the lowering's canonical form for
	// `if (c) A else B`: t = c; if t == 0 goto L_else; ...).
	Cond   Temp
	Target Label

	// StmtGoto
	GotoTarget Label

	// StmtReturn
	ReturnValue Temp
	ReturnKind  ReturnKind
	HasValue    bool

	// StmtThrow
	ThrowValue Temp
}

// Call is the mandatory-annotation payload of a call statement: the
// callee's fully qualified signature, its dispatch kind, the receiver
// (empty for static calls), and argument temporaries.
type Call struct {
	Signature string
	Kind      CallKind
	Receiver  Temp // empty for CallStatic
	Args      []Temp
	Result    Temp // assigned LHS temp, empty if the call's result is discarded
	HasResult bool
}

func Assign(pos token.Position, lhs Expr, rhs Expr) Stmt {
	return Stmt{Kind: StmtAssign, Pos: pos, LHS: lhs, RHS: rhs}
}

func AssignCall(pos token.Position, lhs Expr, call *Call) Stmt {
	return Stmt{Kind: StmtAssign, Pos: pos, LHS: lhs, Call: call}
}

func CallStmt(pos token.Position, call *Call) Stmt {
	return Stmt{Kind: StmtCall, Pos: pos, Call: call}
}

func If(pos token.Position, cond Temp, target Label) Stmt {
	return Stmt{Kind: StmtIf, Pos: pos, Cond: cond, Target: target}
}

func Goto(pos token.Position, target Label) Stmt {
	return Stmt{Kind: StmtGoto, Pos: pos, GotoTarget: target}
}

func Return(pos token.Position, value Temp, hasValue bool, kind ReturnKind) Stmt {
	return Stmt{Kind: StmtReturn, Pos: pos, ReturnValue: value, HasValue: hasValue, ReturnKind: kind}
}

func Throw(pos token.Position, value Temp) Stmt {
	return Stmt{Kind: StmtThrow, Pos: pos, ThrowValue: value}
}

func (s Stmt) String() string {
	switch s.Kind {
	case StmtAssign:
		if s.Call != nil {
			return fmt.Sprintf("%s := %s", s.LHS, s.Call)
		}
		return fmt.Sprintf("%s := %s", s.LHS, s.RHS)
	case StmtCall:
		return s.Call.String()
	case StmtIf:
		return fmt.Sprintf("if %s == 0 goto %s", s.Cond, s.Target)
	case StmtGoto:
		return fmt.Sprintf("goto %s", s.GotoTarget)
	case StmtReturn:
		if !s.HasValue {
			return "return"
		}
		return fmt.Sprintf("return %s", s.ReturnValue)
	case StmtThrow:
		return fmt.Sprintf("throw %s", s.ThrowValue)
	default:
		return "<invalid-stmt>"
	}
}

func (c *Call) String() string {
	out := fmt.Sprintf("call `%s`", c.Signature)
	if c.Receiver != "" {
		out = fmt.Sprintf("%s.%s", c.Receiver, out)
	}
	return out
}
