package lowering

import (
	"github.com/jawa-analysis/heapsum/internal/ast"
	"github.com/jawa-analysis/heapsum/internal/diagnostics"
	"github.com/jawa-analysis/heapsum/internal/ir"
)

// intType, objectType and boolType are the types lowering gives its own
// temporaries when no more specific declared type applies.
var intType = ast.Type{Name: "int"}
var objectType = ast.Type{Name: "Object"}
var boolType = ast.Type{Name: "boolean"}

// relational is the set of operators whose result is a materialized
// boolean value rather than a new arithmetic value.
var relational = map[string]bool{
	"==": true, "!=": true, "<": true, "<=": true, ">": true, ">=": true,
}

// lowerExpr translates a structured expression into a statement list plus
// the temp holding its value: it introduces a fresh temporary for every
// non-trivial subexpression. A bare ExprName or ExprLiteral needs
// no new temp and so the returned statement list may be empty, but every
// compound subexpression is evaluated through one.
func (c *Ctx) lowerExpr(e ast.Expr) ([]ir.Location, ir.Temp, error) {
	switch e.Kind {
	case ast.ExprLiteral:
		t := c.newTemp(literalType(e.Literal))
		return []ir.Location{c.emit(ir.Assign(e.Pos, ir.Name(t), ir.Literal(e.Literal)))}, t, nil

	case ast.ExprName:
		t, ok := c.resolve(e.Name)
		if !ok {
			return nil, "", lowerErr(e.Pos, diagnostics.CodeUnresolvedSymbol, "undeclared name %q", e.Name)
		}
		return nil, t, nil

	case ast.ExprFieldAccess:
		baseLocs, baseTemp, err := c.lowerExpr(*e.Base)
		if err != nil {
			return nil, "", err
		}
		t := c.newTemp(objectType)
		loc := c.emit(ir.Assign(e.Pos, ir.Name(t), ir.Access(baseTemp, e.Field)))
		return append(baseLocs, loc), t, nil

	case ast.ExprStaticFieldAccess:
		t := c.newTemp(objectType)
		loc := c.emit(ir.Assign(e.Pos, ir.Name(t), ir.StaticAccess(staticFQN(e))))
		return []ir.Location{loc}, t, nil

	case ast.ExprIndex:
		baseLocs, baseTemp, err := c.lowerExpr(*e.Base)
		if err != nil {
			return nil, "", err
		}
		idxLocs, idxTemp, err := c.lowerExpr(*e.Index)
		if err != nil {
			return nil, "", err
		}
		t := c.newTemp(objectType)
		loc := c.emit(ir.Assign(e.Pos, ir.Name(t), ir.Index(baseTemp, idxTemp)))
		out := append(baseLocs, idxLocs...)
		return append(out, loc), t, nil

	case ast.ExprNewArray:
		var out []ir.Location
		dims := make([]ir.Temp, 0, len(e.Dims))
		for _, d := range e.Dims {
			locs, temp, err := c.lowerExpr(d)
			if err != nil {
				return nil, "", err
			}
			out = append(out, locs...)
			dims = append(dims, temp)
		}
		arrType := e.Type
		arrType.ArrayOf = len(e.Dims)
		t := c.newTemp(arrType)
		out = append(out, c.emit(ir.Assign(e.Pos, ir.Name(t), ir.New(e.Type.Name, dims))))
		return out, t, nil

	case ast.ExprNew:
		var out []ir.Location
		args := make([]ir.Temp, 0, len(e.Args))
		for _, a := range e.Args {
			locs, temp, err := c.lowerExpr(a)
			if err != nil {
				return nil, "", err
			}
			out = append(out, locs...)
			args = append(args, temp)
		}
		t := c.newTemp(e.Type)
		out = append(out, c.emit(ir.Assign(e.Pos, ir.Name(t), ir.New(e.Type.Name, args))))
		return out, t, nil

	case ast.ExprCast:
		locs, operand, err := c.lowerExpr(*e.Operand)
		if err != nil {
			return nil, "", err
		}
		// Cast is treated as a copy; the engine trusts the source types.
		t := c.newTemp(e.Type)
		locs = append(locs, c.emit(ir.Assign(e.Pos, ir.Name(t), ir.Cast(e.Type.Name, operand))))
		return locs, t, nil

	case ast.ExprInstanceOf:
		locs, operand, err := c.lowerExpr(*e.Operand)
		if err != nil {
			return nil, "", err
		}
		t := c.newTemp(boolType)
		locs = append(locs, c.emit(ir.Assign(e.Pos, ir.Name(t), ir.InstanceOf(operand, e.Type.Name))))
		return locs, t, nil

	case ast.ExprUnary:
		return c.lowerUnary(e)

	case ast.ExprBinary:
		return c.lowerBinary(e)

	case ast.ExprLogicalAnd, ast.ExprLogicalOr:
		return c.lowerShortCircuit(e)

	case ast.ExprTernary:
		return c.lowerTernary(e)

	case ast.ExprAssign:
		return c.lowerAssign(e)

	case ast.ExprCompoundAssign:
		return c.lowerCompoundAssign(e)

	case ast.ExprPreIncDec, ast.ExprPostIncDec:
		return c.lowerIncDec(e)

	case ast.ExprCall:
		return c.lowerCall(e)

	default:
		return nil, "", lowerErr(e.Pos, diagnostics.CodeUnsupportedSyntax, "unsupported expression kind %d", e.Kind)
	}
}

// staticFQN renders a structured static-field reference as the fully
// qualified "ClassName.Field" name internal/ir and internal/heap key
// static fields by.
func staticFQN(e ast.Expr) string {
	return e.ClassName + "." + e.Field
}

func literalType(v any) ast.Type {
	switch v.(type) {
	case int, int64, int32:
		return intType
	case bool:
		return boolType
	default:
		return objectType
	}
}

// lowerBinary lowers a.+,-,*,/,... and relational operators alike: both
// operands are evaluated through temps first, then combined into one
// binary-valued temp. Relational operators materialize a boolean value
// rather than branching inline — the branchy encoding real bytecode uses
// for comparisons carries no extra information for this engine's transfer
// functions, which treat all non-call statements as identity on the fact
// set regardless of how a condition was computed, so it is elided here.
func (c *Ctx) lowerBinary(e ast.Expr) ([]ir.Location, ir.Temp, error) {
	leftLocs, left, err := c.lowerExpr(*e.Left)
	if err != nil {
		return nil, "", err
	}
	rightLocs, right, err := c.lowerExpr(*e.Right)
	if err != nil {
		return nil, "", err
	}
	out := append(leftLocs, rightLocs...)
	resultType := intType
	if relational[e.Op] {
		resultType = boolType
	}
	t := c.newTemp(resultType)
	out = append(out, c.emit(ir.Assign(e.Pos, ir.Name(t), ir.Binary(e.Op, left, right))))
	return out, t, nil
}

// lowerUnary handles logical negation and arithmetic negation.
func (c *Ctx) lowerUnary(e ast.Expr) ([]ir.Location, ir.Temp, error) {
	locs, operand, err := c.lowerExpr(*e.Operand)
	if err != nil {
		return nil, "", err
	}
	resultType := intType
	if e.UnaryOp == "!" {
		resultType = boolType
	}
	t := c.newTemp(resultType)
	locs = append(locs, c.emit(ir.Assign(e.Pos, ir.Name(t), ir.Unary(e.UnaryOp, operand))))
	return locs, t, nil
}
