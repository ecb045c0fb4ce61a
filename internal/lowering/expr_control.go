package lowering

import (
	"github.com/jawa-analysis/heapsum/internal/ast"
	"github.com/jawa-analysis/heapsum/internal/diagnostics"
	"github.com/jawa-analysis/heapsum/internal/ir"
	"github.com/jawa-analysis/heapsum/internal/token"
)

// lowerShortCircuit lowers && and || into the canonical zero-test
// branching form, producing a single boolean-valued result temp.
func (c *Ctx) lowerShortCircuit(e ast.Expr) ([]ir.Location, ir.Temp, error) {
	leftLocs, left, err := c.lowerExpr(*e.Left)
	if err != nil {
		return nil, "", err
	}
	result := c.newTemp(boolType)
	lFalse := c.newGenericLabel()
	lEnd := c.newGenericLabel()

	var out []ir.Location
	out = append(out, leftLocs...)

	if e.Kind == ast.ExprLogicalAnd {
		// a && b: if !a, short-circuit to false; otherwise evaluate b.
		out = append(out, c.emit(ir.If(e.Pos, left, lFalse)))
		rightLocs, right, err := c.lowerExpr(*e.Right)
		if err != nil {
			return nil, "", err
		}
		out = append(out, rightLocs...)
		out = append(out, c.emit(ir.If(e.Pos, right, lFalse)))
		out = append(out, c.emit(ir.Assign(e.Pos, ir.Name(result), ir.Literal(1))))
		out = append(out, c.emit(ir.Goto(e.Pos, lEnd)))
		out = append(out, c.emitLabeled(lFalse, ir.Assign(e.Pos, ir.Name(result), ir.Literal(0))))
	} else {
		// a || b: if a, short-circuit to true; otherwise evaluate b.
		lCheckB := c.newGenericLabel()
		out = append(out, c.emit(ir.If(e.Pos, left, lCheckB)))
		out = append(out, c.emit(ir.Assign(e.Pos, ir.Name(result), ir.Literal(1))))
		out = append(out, c.emit(ir.Goto(e.Pos, lEnd)))
		rightLocs, right, err := c.lowerExpr(*e.Right)
		if err != nil {
			return nil, "", err
		}
		rightLocs = c.ensureAnchor(e.Pos, rightLocs, right)
		out = append(out, c.attachLabelToFirst(lCheckB, rightLocs)...)
		out = append(out, c.emit(ir.If(e.Pos, right, lFalse)))
		out = append(out, c.emit(ir.Assign(e.Pos, ir.Name(result), ir.Literal(1))))
		out = append(out, c.emit(ir.Goto(e.Pos, lEnd)))
		out = append(out, c.emitLabeled(lFalse, ir.Assign(e.Pos, ir.Name(result), ir.Literal(0))))
	}
	out = append(out, c.emitLabeled(lEnd, ir.Assign(e.Pos, ir.Name(result), ir.Name(result))))
	return out, result, nil
}

// ensureAnchor guarantees locs is non-empty, so a label can always be
// attached to the first location of a lowered subexpression even when
// that subexpression lowered to zero statements (a bare name or literal
// operand needs no temp of its own, but a branch target does need a real
// location to land on).
func (c *Ctx) ensureAnchor(pos token.Position, locs []ir.Location, temp ir.Temp) []ir.Location {
	if len(locs) > 0 {
		return locs
	}
	return []ir.Location{c.emit(ir.Assign(pos, ir.Name(temp), ir.Name(temp)))}
}

// attachLabelToFirst relabels the first location of locs with label, used
// when a label must mark the start of an already-lowered expression
// rather than a synthetic statement. Callers must ensure locs is
// non-empty first (see ensureAnchor).
func (c *Ctx) attachLabelToFirst(label ir.Label, locs []ir.Location) []ir.Location {
	if len(locs) == 0 {
		return locs
	}
	locs[0].Label = label
	return locs
}

// lowerTernary lowers `cond ? then : else` using the same if/else pattern
// as a statement-level conditional, materializing the chosen branch's
// value into a single result temp.
func (c *Ctx) lowerTernary(e ast.Expr) ([]ir.Location, ir.Temp, error) {
	condLocs, cond, err := c.lowerExpr(*e.Cond)
	if err != nil {
		return nil, "", err
	}
	thenLocs, thenTemp, err := c.lowerExpr(*e.Then)
	if err != nil {
		return nil, "", err
	}
	elseLocs, elseTemp, err := c.lowerExpr(*e.Else)
	if err != nil {
		return nil, "", err
	}
	result := c.newTemp(objectType)
	lElse := c.newGenericLabel()
	lEnd := c.newGenericLabel()

	var out []ir.Location
	out = append(out, condLocs...)
	out = append(out, c.emit(ir.If(e.Pos, cond, lElse)))
	out = append(out, thenLocs...)
	out = append(out, c.emit(ir.Assign(e.Pos, ir.Name(result), ir.Name(thenTemp))))
	out = append(out, c.emit(ir.Goto(e.Pos, lEnd)))
	elseLocs = c.ensureAnchor(e.Pos, elseLocs, elseTemp)
	out = append(out, c.attachLabelToFirst(lElse, elseLocs)...)
	out = append(out, c.emit(ir.Assign(e.Pos, ir.Name(result), ir.Name(elseTemp))))
	out = append(out, c.emitLabeled(lEnd, ir.Assign(e.Pos, ir.Name(result), ir.Name(result))))
	return out, result, nil
}

// lowerAssign lowers `lhs = rhs`, resolving lhs to a Var/Field/Index
// target and returning the assigned value's temp (assignment is itself an
// expression that evaluates to its RHS value).
func (c *Ctx) lowerAssign(e ast.Expr) ([]ir.Location, ir.Temp, error) {
	rhsLocs, rhsTemp, err := c.lowerExpr(*e.Right)
	if err != nil {
		return nil, "", err
	}
	lhsLocs, lhsExpr, err := c.lowerLHS(*e.Left)
	if err != nil {
		return nil, "", err
	}
	out := append(rhsLocs, lhsLocs...)
	out = append(out, c.emit(ir.Assign(e.Pos, lhsExpr, ir.Name(rhsTemp))))
	return out, rhsTemp, nil
}

// lowerLHS lowers an assignment target to an ir.Expr naming the slot to
// store into (Name/Access/Index), plus any statements needed to evaluate
// its base (for Field/Index targets).
func (c *Ctx) lowerLHS(e ast.Expr) ([]ir.Location, ir.Expr, error) {
	switch e.Kind {
	case ast.ExprName:
		t, ok := c.resolve(e.Name)
		if !ok {
			return nil, ir.Expr{}, lowerErr(e.Pos, diagnostics.CodeUnresolvedSymbol, "undeclared name %q", e.Name)
		}
		return nil, ir.Name(t), nil
	case ast.ExprFieldAccess:
		locs, base, err := c.lowerExpr(*e.Base)
		if err != nil {
			return nil, ir.Expr{}, err
		}
		return locs, ir.Access(base, e.Field), nil
	case ast.ExprStaticFieldAccess:
		return nil, ir.StaticAccess(staticFQN(e)), nil
	case ast.ExprIndex:
		baseLocs, base, err := c.lowerExpr(*e.Base)
		if err != nil {
			return nil, ir.Expr{}, err
		}
		idxLocs, idx, err := c.lowerExpr(*e.Index)
		if err != nil {
			return nil, ir.Expr{}, err
		}
		return append(baseLocs, idxLocs...), ir.Index(base, idx), nil
	default:
		return nil, ir.Expr{}, lowerErr(e.Pos, diagnostics.CodeUnsupportedSyntax, "invalid assignment target")
	}
}

// lowerCompoundAssign lowers `lhs op= rhs` as `lhs = lhs op rhs`.
func (c *Ctx) lowerCompoundAssign(e ast.Expr) ([]ir.Location, ir.Temp, error) {
	baseOp := e.Op[:len(e.Op)-1] // "+=" -> "+"
	synthetic := ast.Expr{
		Kind: ast.ExprAssign,
		Pos:  e.Pos,
		Left: e.Left,
		Right: &ast.Expr{
			Kind:  ast.ExprBinary,
			Pos:   e.Pos,
			Op:    baseOp,
			Left:  e.Left,
			Right: e.Right,
		},
	}
	return c.lowerAssign(synthetic)
}

// lowerIncDec lowers `x++`, `++x`, `x--`, `--x`. Pre-forms evaluate to the
// updated value; post-forms evaluate to the value before the update.
func (c *Ctx) lowerIncDec(e ast.Expr) ([]ir.Location, ir.Temp, error) {
	opBase := "+"
	if e.UnaryOp == "--" {
		opBase = "-"
	}
	operandLocs, operand, err := c.lowerExpr(*e.Operand)
	if err != nil {
		return nil, "", err
	}
	var out []ir.Location
	out = append(out, operandLocs...)

	if e.Kind == ast.ExprPostIncDec {
		saved := c.newTemp(intType)
		out = append(out, c.emit(ir.Assign(e.Pos, ir.Name(saved), ir.Name(operand))))
		updated := c.newTemp(intType)
		out = append(out, c.emit(ir.Assign(e.Pos, ir.Name(updated), ir.Binary(opBase, operand, literalOneTemp(c, e, &out)))))
		lhsLocs, lhsExpr, err := c.lowerLHS(*e.Operand)
		if err != nil {
			return nil, "", err
		}
		out = append(out, lhsLocs...)
		out = append(out, c.emit(ir.Assign(e.Pos, lhsExpr, ir.Name(updated))))
		return out, saved, nil
	}

	updated := c.newTemp(intType)
	out = append(out, c.emit(ir.Assign(e.Pos, ir.Name(updated), ir.Binary(opBase, operand, literalOneTemp(c, e, &out)))))
	lhsLocs, lhsExpr, err := c.lowerLHS(*e.Operand)
	if err != nil {
		return nil, "", err
	}
	out = append(out, lhsLocs...)
	out = append(out, c.emit(ir.Assign(e.Pos, lhsExpr, ir.Name(updated))))
	return out, updated, nil
}

// literalOneTemp materializes the constant 1 through a temp (every
// subexpression, including a synthesized literal, evaluates through one)
// and appends its statement to *out.
func literalOneTemp(c *Ctx, e ast.Expr, out *[]ir.Location) ir.Temp {
	one := c.newTemp(intType)
	*out = append(*out, c.emit(ir.Assign(e.Pos, ir.Name(one), ir.Literal(1))))
	return one
}

// lowerCall lowers a call expression, emitting the mandatory signature and
// kind annotations. The call's dispatch kind is determined by the
// receiver form and declaring-class modifiers already resolved onto the
// ast.Expr by the external collaborator that built it.
func (c *Ctx) lowerCall(e ast.Expr) ([]ir.Location, ir.Temp, error) {
	var out []ir.Location
	var recv ir.Temp
	if e.Receiver != nil {
		recvLocs, recvTemp, err := c.lowerExpr(*e.Receiver)
		if err != nil {
			return nil, "", err
		}
		out = append(out, recvLocs...)
		recv = recvTemp
	}
	args := make([]ir.Temp, 0, len(e.Args))
	for _, a := range e.Args {
		locs, temp, err := c.lowerExpr(a)
		if err != nil {
			return nil, "", err
		}
		out = append(out, locs...)
		args = append(args, temp)
	}
	kind := ir.CallVirtual
	switch {
	case e.CalleeStatic:
		kind = ir.CallStatic
	case e.CalleeDirect:
		kind = ir.CallDirect
	case e.CalleeSuper:
		kind = ir.CallSuper
	case e.DeclaringIface:
		kind = ir.CallInterface
	}
	result := c.newTemp(objectType)
	call := &ir.Call{
		Signature: e.CalleeSig,
		Kind:      kind,
		Receiver:  recv,
		Args:      args,
		Result:    result,
		HasResult: true,
	}
	out = append(out, c.emit(ir.AssignCall(e.Pos, ir.Name(result), call)))
	return out, result, nil
}
