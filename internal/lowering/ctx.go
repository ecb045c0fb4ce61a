// Package lowering translates a structured internal/ast method body into
// linear, labeled internal/ir form. The translator is a pure recursive
// function over an explicit *Ctx returning (stmts, resultTemp) pairs; per
// the "Mutable builders" design note, there is no shared mutable visitor
// carrying an LHS/isLeft toggle — every lowerX function takes what it
// needs as arguments and returns what it produced as values.
package lowering

import (
	"fmt"

	"github.com/jawa-analysis/heapsum/internal/ast"
	"github.com/jawa-analysis/heapsum/internal/diagnostics"
	"github.com/jawa-analysis/heapsum/internal/ir"
	"github.com/jawa-analysis/heapsum/internal/token"
)

// scopeFrame maps a user-declared variable name to its flat output temp,
// for the current lexical scope. Frames are pushed on scope entry and
// popped on exit, following a plain stack-of-scope-frames discipline.
type scopeFrame map[string]ir.Temp

// labelFrame is one entry of the label-stack state machine: the
// start/end labels of an enclosing loop or switch, and the user label
// attached to it, if any.
type labelFrame struct {
	userLabel  string
	start      ir.Label
	end        ir.Label
	continueTo ir.Label
	isSwitch   bool
}

// Ctx carries the per-method mutable counters and scope/label stacks the
// translator needs. It is never shared across methods.
type Ctx struct {
	Method string

	lineCount  int
	labelCount int

	tempSeq map[string]int // name-prefix -> next collision suffix
	types   map[ir.Temp]string

	scopes []scopeFrame
	shadow map[string]ir.Temp // reconciles a later decl aliasing an earlier name of a different type

	labels         []labelFrame
	constructCount map[string]int // "Do_start", "While_start", ... -> next N
	genLabelSeq    int            // backs the generic L0, L1, ... scheme used by if/ternary/short-circuit lowering

	catches          []ir.CatchClause // accumulated across lowerTry calls, collected by LowerMethod
	pendingUserLabel string           // set by lowerLabeled before re-lowering a labeled loop, consumed by push{Loop,Switch}
}

// NewCtx returns a fresh lowering context for method.
func NewCtx(method string) *Ctx {
	return &Ctx{
		Method:         method,
		tempSeq:        make(map[string]int),
		types:          make(map[ir.Temp]string),
		scopes:         []scopeFrame{{}},
		shadow:         make(map[string]ir.Temp),
		constructCount: make(map[string]int),
	}
}

// pushScope enters a new lexical scope frame.
func (c *Ctx) pushScope() { c.scopes = append(c.scopes, scopeFrame{}) }

// popScope exits the current lexical scope frame.
func (c *Ctx) popScope() { c.scopes = c.scopes[:len(c.scopes)-1] }

// declare binds name to a fresh or existing temp in the current scope. If
// an outer scope already bound name to a temp of a different type, the
// new declaration shadows it via the shadow map rather than aliasing.
func (c *Ctx) declare(name string, typ ast.Type) ir.Temp {
	t := c.newUserTemp(name, typ)
	c.scopes[len(c.scopes)-1][name] = t
	// A later declaration aliasing an earlier name of a different type is
	// reconciled here: the shadow map always reflects the most recent
	// declaration, while resolve() still falls back to it for names that
	// have left their original scope's frame.
	c.shadow[name] = t
	return t
}

// resolve looks up name's current temp, innermost scope first.
func (c *Ctx) resolve(name string) (ir.Temp, bool) {
	for i := len(c.scopes) - 1; i >= 0; i-- {
		if t, ok := c.scopes[i][name]; ok {
			return t, true
		}
	}
	if t, ok := c.shadow[name]; ok {
		return t, true
	}
	return "", false
}

func (c *Ctx) nextIndex() int {
	idx := c.lineCount + c.labelCount
	return idx
}

// emit appends stmt as the next Location and bumps the statement counter.
func (c *Ctx) emit(stmt ir.Stmt) ir.Location {
	loc := ir.Location{Index: c.nextIndex(), Stmt: stmt}
	c.lineCount++
	return loc
}

// emitLabeled attaches label to the next Location and bumps both
// counters: the location holds a statement (lineCount) and carries a
// label (labelCount).
func (c *Ctx) emitLabeled(label ir.Label, stmt ir.Stmt) ir.Location {
	loc := ir.Location{Index: c.nextIndex(), Label: label, Stmt: stmt}
	c.labelCount++
	c.lineCount++
	return loc
}

// newConstructLabel returns the next globally-unique label for a
// construct kind ("Do_start", "Do_end", "While_start", ...).
func (c *Ctx) newConstructLabel(prefix string) ir.Label {
	n := c.constructCount[prefix]
	c.constructCount[prefix]++
	return ir.Label(fmt.Sprintf("%s_%d", prefix, n))
}

// newGenericLabel returns the next L0, L1, L2, ... label used by if/else,
// ternary, and short-circuit lowering for the `if (c) A else B` rule.
func (c *Ctx) newGenericLabel() ir.Label {
	l := ir.Label(fmt.Sprintf("L%d", c.genLabelSeq))
	c.genLabelSeq++
	return l
}

// newUserLabel translates a user-declared label, suffixing it with
// "_label" if it collides with a reserved construct-label prefix.
func (c *Ctx) newUserLabel(name string) ir.Label {
	for _, reserved := range []string{"Do_start", "Do_end", "While_start", "While_end",
		"For_start", "For_end", "Switch_start", "Switch_end", "Label"} {
		if name == reserved {
			return ir.Label(name + "_label")
		}
	}
	return ir.Label(name)
}

// posOf converts an ast.Expr/Stmt's token.Position for diagnostics.
func posOf(p token.Position) token.Position { return p }

func lowerErr(pos token.Position, code diagnostics.ErrorCode, format string, args ...any) error {
	return diagnostics.New(pos, code, format, args...)
}
