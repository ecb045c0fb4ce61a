package lowering

import (
	"github.com/jawa-analysis/heapsum/internal/ast"
	"github.com/jawa-analysis/heapsum/internal/diagnostics"
	"github.com/jawa-analysis/heapsum/internal/ir"
	"github.com/jawa-analysis/heapsum/internal/token"
)

// LowerMethod translates a structured method body into linear IR,
// following a fixed discipline: a fresh scope for parameters, every
// subexpression through a temp, every branch target an explicit label,
// and a synthesized void return if control can fall off the end of a
// void method without one.
func LowerMethod(m ast.Method) (ir.Body, error) {
	c := NewCtx(m.Signature)
	if m.Receiver != nil {
		c.declare(m.Receiver.Name, m.Receiver.Type)
	}
	for _, p := range m.Params {
		c.declare(p.Name, p.Type)
	}

	var locs []ir.Location
	for _, s := range m.Body {
		stmtLocs, err := c.lowerStmt(s)
		if err != nil {
			return ir.Body{}, err
		}
		locs = append(locs, stmtLocs...)
	}

	if m.IsVoid && !endsInTerminator(m.Body) {
		locs = append(locs, c.emit(ir.Return(token.Position{}, "", false, ir.ReturnVoid)))
	}

	return ir.Body{Locations: locs, Catches: c.catches}, nil
}

// endsInTerminator reports whether the last statement of a body is a
// return or throw, so LowerMethod knows whether to synthesize one.
func endsInTerminator(body []ast.Stmt) bool {
	if len(body) == 0 {
		return false
	}
	switch body[len(body)-1].Kind {
	case ast.StmtReturn, ast.StmtThrow:
		return true
	default:
		return false
	}
}

// lowerStmt translates one structured statement into zero or more IR
// locations.
func (c *Ctx) lowerStmt(s ast.Stmt) ([]ir.Location, error) {
	switch s.Kind {
	case ast.StmtExpr:
		locs, _, err := c.lowerExpr(s.Expr)
		return locs, err

	case ast.StmtVarDecl:
		return c.lowerVarDecl(s)

	case ast.StmtBlock:
		return c.lowerBlock(s.Block)

	case ast.StmtIf:
		return c.lowerIf(s)

	case ast.StmtWhile:
		return c.lowerWhile(s)

	case ast.StmtDoWhile:
		return c.lowerDoWhile(s)

	case ast.StmtFor:
		return c.lowerFor(s)

	case ast.StmtSwitch:
		return c.lowerSwitch(s)

	case ast.StmtBreak:
		target, err := c.breakTarget(s.Pos, s.TargetLabel)
		if err != nil {
			return nil, err
		}
		return []ir.Location{c.emit(ir.Goto(s.Pos, target))}, nil

	case ast.StmtContinue:
		target, err := c.continueTarget(s.Pos, s.TargetLabel)
		if err != nil {
			return nil, err
		}
		return []ir.Location{c.emit(ir.Goto(s.Pos, target))}, nil

	case ast.StmtReturn:
		if !s.HasReturnValue {
			return []ir.Location{c.emit(ir.Return(s.Pos, "", false, ir.ReturnVoid))}, nil
		}
		locs, value, err := c.lowerExpr(s.ReturnValue)
		if err != nil {
			return nil, err
		}
		return append(locs, c.emit(ir.Return(s.Pos, value, true, ir.ReturnObject))), nil

	case ast.StmtThrow:
		locs, value, err := c.lowerExpr(s.ThrowValue)
		if err != nil {
			return nil, err
		}
		return append(locs, c.emit(ir.Throw(s.Pos, value))), nil

	case ast.StmtTry:
		return c.lowerTry(s)

	case ast.StmtAssert:
		return c.lowerAssert(s)

	case ast.StmtLabeled:
		return c.lowerLabeled(s)

	default:
		return nil, lowerErr(s.Pos, diagnostics.CodeUnsupportedSyntax, "unsupported statement kind %d", s.Kind)
	}
}

func (c *Ctx) lowerVarDecl(s ast.Stmt) ([]ir.Location, error) {
	var out []ir.Location
	var value ir.Temp
	if s.HasInit {
		locs, v, err := c.lowerExpr(s.Init)
		if err != nil {
			return nil, err
		}
		out = append(out, locs...)
		value = v
	}
	t := c.declare(s.VarName, s.VarType)
	if s.HasInit {
		out = append(out, c.emit(ir.Assign(s.Pos, ir.Name(t), ir.Name(value))))
	}
	return out, nil
}

func (c *Ctx) lowerBlock(stmts []ast.Stmt) ([]ir.Location, error) {
	c.pushScope()
	defer c.popScope()
	var out []ir.Location
	for _, s := range stmts {
		locs, err := c.lowerStmt(s)
		if err != nil {
			return nil, err
		}
		out = append(out, locs...)
	}
	return out, nil
}

// lowerIf implements the canonical rule:
//
//	if (c) A else B  ->  t = c; if t == 0 goto L_else; A; goto L_end; L_else: B; L_end:
//
// An else-less if skips L_else entirely: the zero test branches straight
// to L_end, since there is no else block for it to guard.
func (c *Ctx) lowerIf(s ast.Stmt) ([]ir.Location, error) {
	condLocs, cond, err := c.lowerExpr(s.Cond)
	if err != nil {
		return nil, err
	}
	thenLocs, err := c.lowerBlock(s.Then)
	if err != nil {
		return nil, err
	}
	lEnd := c.newGenericLabel()

	var out []ir.Location
	out = append(out, condLocs...)

	if !s.HasElse {
		out = append(out, c.emit(ir.If(s.Pos, cond, lEnd)))
		out = append(out, thenLocs...)
		out = append(out, c.emitLabeled(lEnd, noop(s.Pos)))
		return out, nil
	}

	lElse := c.newGenericLabel()
	out = append(out, c.emit(ir.If(s.Pos, cond, lElse)))
	out = append(out, thenLocs...)
	out = append(out, c.emit(ir.Goto(s.Pos, lEnd)))
	elseLocs, err := c.lowerBlock(s.Else)
	if err != nil {
		return nil, err
	}
	elseLocs = c.ensureAnchorStmt(s.Pos, elseLocs)
	out = append(out, c.attachLabelToFirst(lElse, elseLocs)...)
	out = append(out, c.emitLabeled(lEnd, noop(s.Pos)))
	return out, nil
}

// noop is a self-referencing assignment used purely to give a label a
// real statement to attach to, when no user statement occupies that
// program point (e.g. a loop's end label, or an else-less if's join
// point).
func noop(pos token.Position) ir.Stmt {
	const anchor ir.Temp = "_anchor"
	return ir.Assign(pos, ir.Name(anchor), ir.Name(anchor))
}

// ensureAnchorStmt is ensureAnchor specialized for statement lists (which
// carry no single "value" temp to re-anchor on).
func (c *Ctx) ensureAnchorStmt(pos token.Position, locs []ir.Location) []ir.Location {
	if len(locs) > 0 {
		return locs
	}
	return []ir.Location{c.emit(noop(pos))}
}

func (c *Ctx) lowerWhile(s ast.Stmt) ([]ir.Location, error) {
	label := c.pendingUserLabel
	c.pendingUserLabel = ""
	start, end := c.pushLoop("While", label)
	defer c.popLoop(s.Pos)

	condLocs, cond, err := c.lowerExpr(s.Cond)
	if err != nil {
		return nil, err
	}
	bodyLocs, err := c.lowerBlock(s.Body)
	if err != nil {
		return nil, err
	}

	var out []ir.Location
	condLocs = c.ensureAnchorStmt(s.Pos, condLocs)
	out = append(out, c.attachLabelToFirst(start, condLocs)...)
	out = append(out, c.emit(ir.If(s.Pos, cond, end)))
	out = append(out, bodyLocs...)
	out = append(out, c.emit(ir.Goto(s.Pos, start)))
	out = append(out, c.emitLabeled(end, noop(s.Pos)))
	return out, nil
}

// lowerDoWhile implements the canonical do/while lowering:
//
//	do { body } while(c);  ->  Do_start_0: body; t := c; if t != 0 goto Do_start_0; Do_end_0:
//
// Expressed in this module's canonical zero-test form as: evaluate c,
// negate it, and branch back to the start label on the negated zero test
// (taken exactly when c is nonzero), falling through to the end label
// otherwise — "loop while c is true".
func (c *Ctx) lowerDoWhile(s ast.Stmt) ([]ir.Location, error) {
	label := c.pendingUserLabel
	c.pendingUserLabel = ""
	start, end := c.pushLoop("Do", label)
	defer c.popLoop(s.Pos)

	bodyLocs, err := c.lowerBlock(s.Body)
	if err != nil {
		return nil, err
	}
	bodyLocs = c.ensureAnchorStmt(s.Pos, bodyLocs)

	condLocs, cond, err := c.lowerExpr(s.Cond)
	if err != nil {
		return nil, err
	}
	negated := c.newTemp(boolType)

	var out []ir.Location
	out = append(out, c.attachLabelToFirst(start, bodyLocs)...)
	out = append(out, condLocs...)
	out = append(out, c.emit(ir.Assign(s.Pos, ir.Name(negated), ir.Unary("!", cond))))
	out = append(out, c.emit(ir.If(s.Pos, negated, start)))
	out = append(out, c.emitLabeled(end, noop(s.Pos)))
	return out, nil
}

func (c *Ctx) lowerFor(s ast.Stmt) ([]ir.Location, error) {
	c.pushScope()
	defer c.popScope()

	var out []ir.Location
	for _, init := range s.ForInit {
		locs, err := c.lowerStmt(init)
		if err != nil {
			return nil, err
		}
		out = append(out, locs...)
	}

	label := c.pendingUserLabel
	c.pendingUserLabel = ""
	start, end := c.pushLoop("For", label)
	defer c.popLoop(s.Pos)
	// continue in a for-loop must run the post-step before retesting the
	// condition, so it gets its own label distinct from the loop's start.
	continueLabel := c.newGenericLabel()
	c.setContinueTarget(continueLabel)

	var condLocs []ir.Location
	var cond ir.Temp
	if s.HasForCond {
		var err error
		condLocs, cond, err = c.lowerExpr(s.ForCond)
		if err != nil {
			return nil, err
		}
	}
	bodyLocs, err := c.lowerBlock(s.Body)
	if err != nil {
		return nil, err
	}
	var postLocs []ir.Location
	for _, post := range s.ForPost {
		locs, err := c.lowerStmt(post)
		if err != nil {
			return nil, err
		}
		postLocs = append(postLocs, locs...)
	}

	condLocs = c.ensureAnchorStmt(s.Pos, condLocs)
	out = append(out, c.attachLabelToFirst(start, condLocs)...)
	if s.HasForCond {
		out = append(out, c.emit(ir.If(s.Pos, cond, end)))
	}
	out = append(out, bodyLocs...)
	postLocs = c.ensureAnchorStmt(s.Pos, postLocs)
	out = append(out, c.attachLabelToFirst(continueLabel, postLocs)...)
	out = append(out, c.emit(ir.Goto(s.Pos, start)))
	out = append(out, c.emitLabeled(end, noop(s.Pos)))
	return out, nil
}

func (c *Ctx) lowerSwitch(s ast.Stmt) ([]ir.Location, error) {
	label := c.pendingUserLabel
	c.pendingUserLabel = ""
	_, end := c.pushSwitch(label)
	defer c.popLoop(s.Pos)

	tagLocs, tag, err := c.lowerExpr(s.SwitchTag)
	if err != nil {
		return nil, err
	}
	out := append([]ir.Location{}, tagLocs...)

	// Lowered as a linear if/else-if chain over equality comparisons,
	// ending at the shared end label; default falls through unconditionally.
	caseLabels := make([]ir.Label, len(s.SwitchCases))
	for i := range s.SwitchCases {
		caseLabels[i] = c.newGenericLabel()
	}
	for i, cs := range s.SwitchCases {
		if cs.IsDefault {
			continue
		}
		for _, v := range cs.Values {
			vLocs, vTemp, err := c.lowerExpr(v)
			if err != nil {
				return nil, err
			}
			out = append(out, vLocs...)
			eqTemp := c.boolTemp()
			out = append(out, c.emit(ir.Assign(s.Pos, ir.Name(eqTemp), ir.Binary("==", tag, vTemp))))
			skipCase := c.newGenericLabel()
			// if eqTemp == 0 (tag != value) skip this case's jump.
			out = append(out, c.emit(ir.If(s.Pos, eqTemp, skipCase)))
			out = append(out, c.emit(ir.Goto(s.Pos, caseLabels[i])))
			out = append(out, c.emitLabeled(skipCase, noop(s.Pos)))
		}
	}
	if d := defaultIndex(s.SwitchCases); d >= 0 {
		out = append(out, c.emit(ir.Goto(s.Pos, caseLabels[d])))
	} else {
		out = append(out, c.emit(ir.Goto(s.Pos, end)))
	}
	for i, cs := range s.SwitchCases {
		bodyLocs, err := c.lowerBlock(cs.Body)
		if err != nil {
			return nil, err
		}
		bodyLocs = c.ensureAnchorStmt(s.Pos, bodyLocs)
		out = append(out, c.attachLabelToFirst(caseLabels[i], bodyLocs)...)
	}
	out = append(out, c.emitLabeled(end, noop(s.Pos)))
	return out, nil
}

func defaultIndex(cases []ast.SwitchCase) int {
	for i, cs := range cases {
		if cs.IsDefault {
			return i
		}
	}
	return -1
}

// lowerAssert expands `assert cond [: message]`: check != 0 → skip;
// construct AssertionError; throw.
func (c *Ctx) lowerAssert(s ast.Stmt) ([]ir.Location, error) {
	condLocs, cond, err := c.lowerExpr(s.AssertCond)
	if err != nil {
		return nil, err
	}
	skip := c.newGenericLabel()
	neg := c.newTemp(boolType)
	errTemp := c.newTemp(ast.Type{Name: "AssertionError"})

	var out []ir.Location
	out = append(out, condLocs...)
	out = append(out, c.emit(ir.Assign(s.Pos, ir.Name(neg), ir.Unary("!", cond))))
	out = append(out, c.emit(ir.If(s.Pos, neg, skip)))
	out = append(out, c.emit(ir.Assign(s.Pos, ir.Name(errTemp), ir.New("AssertionError", nil))))
	out = append(out, c.emit(ir.Throw(s.Pos, errTemp)))
	out = append(out, c.emitLabeled(skip, noop(s.Pos)))
	return out, nil
}

func (c *Ctx) lowerTry(s ast.Stmt) ([]ir.Location, error) {
	tryStart := c.newGenericLabel()
	tryEnd := c.newGenericLabel()
	bodyLocs, err := c.lowerBlock(s.TryBody)
	if err != nil {
		return nil, err
	}
	bodyLocs = c.ensureAnchorStmt(s.Pos, bodyLocs)

	var out []ir.Location
	out = append(out, c.attachLabelToFirst(tryStart, bodyLocs)...)
	out = append(out, c.emitLabeled(tryEnd, noop(s.Pos)))

	for _, cat := range s.Catches {
		c.pushScope()
		handler := c.declare(cat.VarName, cat.ExceptionType)
		handlerLabel := c.newGenericLabel()
		catchLocs, err := c.lowerBlock(cat.Body)
		c.popScope()
		if err != nil {
			return nil, err
		}
		catchLocs = c.ensureAnchorStmt(s.Pos, catchLocs)
		out = append(out, c.attachLabelToFirst(handlerLabel, catchLocs)...)
		c.catches = append(c.catches, ir.CatchClause{
			ExceptionType: cat.ExceptionType.Name,
			Handler:       handler,
			Start:         tryStart,
			End:           tryEnd,
			Target:        handlerLabel,
		})
	}
	if s.HasFinally {
		finallyLocs, err := c.lowerBlock(s.Finally)
		if err != nil {
			return nil, err
		}
		out = append(out, finallyLocs...)
	}
	return out, nil
}

func (c *Ctx) lowerLabeled(s ast.Stmt) ([]ir.Location, error) {
	if s.Target == nil {
		return nil, diagnostics.Invariant(s.Pos, "labeled statement with no target")
	}
	switch s.Target.Kind {
	case ast.StmtWhile, ast.StmtDoWhile, ast.StmtFor, ast.StmtSwitch:
		return c.lowerConstructWithUserLabel(*s.Target, s.Label)
	default:
		label := c.newUserLabel(s.Label)
		locs, err := c.lowerStmt(*s.Target)
		if err != nil {
			return nil, err
		}
		locs = c.ensureAnchorStmt(s.Pos, locs)
		return c.attachLabelToFirst(label, locs), nil
	}
}

// lowerConstructWithUserLabel re-lowers a loop or switch statement with
// its user label registered on the label-stack frame, so break/continue
// referencing that label resolve to this construct's start/end.
func (c *Ctx) lowerConstructWithUserLabel(s ast.Stmt, userLabel string) ([]ir.Location, error) {
	c.pendingUserLabel = userLabel
	switch s.Kind {
	case ast.StmtWhile:
		return c.lowerWhile(s)
	case ast.StmtDoWhile:
		return c.lowerDoWhile(s)
	case ast.StmtFor:
		return c.lowerFor(s)
	case ast.StmtSwitch:
		return c.lowerSwitch(s)
	default:
		c.pendingUserLabel = ""
		return nil, diagnostics.Invariant(s.Pos, "lowerConstructWithUserLabel called on non-loop, non-switch statement")
	}
}
