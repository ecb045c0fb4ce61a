package lowering

import (
	"fmt"

	"github.com/jawa-analysis/heapsum/internal/ast"
	"github.com/jawa-analysis/heapsum/internal/ir"
)

// typePrefix maps a source type to the temp-naming scheme's prefix: the
// type's own name for a primitive ("int", "boolean", ...), "object" for
// any other scalar type, or "<BaseName>_arrN" for an N-dimensional array
// of BaseName.
func typePrefix(t ast.Type) string {
	if t.ArrayOf > 0 {
		return fmt.Sprintf("%s_arr%d", t.Name, t.ArrayOf)
	}
	switch t.Name {
	case "int", "long", "short", "byte", "char", "boolean", "float", "double":
		return t.Name
	case "":
		return "object"
	default:
		return "object"
	}
}

// allocTemp returns the next temp for prefix, monotonically suffixing on
// collision: prefix_temp, prefix_temp1, prefix_temp2, ...
func (c *Ctx) allocTemp(prefix string) ir.Temp {
	key := prefix + "_temp"
	n := c.tempSeq[key]
	c.tempSeq[key] = n + 1
	if n == 0 {
		return ir.Temp(key)
	}
	return ir.Temp(fmt.Sprintf("%s%d", key, n))
}

// newTemp allocates a fresh anonymous temporary of type t.
func (c *Ctx) newTemp(t ast.Type) ir.Temp {
	temp := c.allocTemp(typePrefix(t))
	c.types[temp] = t.Name
	return temp
}

// newUserTemp allocates the flat output temp backing a user-declared
// variable named name of type t. User variables flow through the same
// type-prefixed table as compiler temporaries so that a later declaration
// of the same source name can be told apart from an earlier one via the
// shadow map.
func (c *Ctx) newUserTemp(name string, t ast.Type) ir.Temp {
	key := name
	n := c.tempSeq[key]
	c.tempSeq[key] = n + 1
	var temp ir.Temp
	if n == 0 {
		temp = ir.Temp(name)
	} else {
		temp = ir.Temp(fmt.Sprintf("%s%d", name, n))
	}
	c.types[temp] = t.Name
	return temp
}

// boolTemp allocates a temporary for a boolean-valued comparison/logical
// result, named boolean_temp, boolean_temp1, ... like any other
// boolean-typed temporary.
func (c *Ctx) boolTemp() ir.Temp {
	return c.allocTemp("boolean")
}
