// Package slot implements the tagged Slot variant that keys the points-to
// table: variable, instance field, static field, array element, or map
// entry. Per the "tagged variants over inheritance" design note, Slot is a
// closed sum type (a Kind discriminator, exhaustive switch at each use
// site) rather than an interface hierarchy with virtual dispatch.
package slot

import (
	"fmt"

	"github.com/jawa-analysis/heapsum/internal/instance"
)

// Kind discriminates the Slot variants.
type Kind int

const (
	KindVar Kind = iota
	KindField
	KindStaticField
	KindArray
	KindMap
)

func (k Kind) String() string {
	switch k {
	case KindVar:
		return "var"
	case KindField:
		return "field"
	case KindStaticField:
		return "static"
	case KindArray:
		return "array"
	case KindMap:
		return "map"
	default:
		return "unknown-slot-kind"
	}
}

// Slot is one abstract location a points-to table can map to a set of
// instances. It is a value type so it can be used directly as a map key.
type Slot struct {
	kind Kind

	name string // KindVar: variable name. KindStaticField: fully-qualified name.

	base  instance.ID // KindField, KindArray, KindMap: the base instance.
	field string      // KindField: field name.

	// KindMap: the key instance, or the zero ID with HasKey=false for the
	// key-less "all related heap instances" over-approximation (the
	// SuMapAccess key-less behavior).
	key    instance.ID
	hasKey bool
}

// Var constructs a Slot for a local/parameter variable.
func Var(name string) Slot { return Slot{kind: KindVar, name: name} }

// Field constructs a Slot for an instance field access base.f.
func Field(base instance.ID, field string) Slot {
	return Slot{kind: KindField, base: base, field: field}
}

// StaticField constructs a Slot for a static field, keyed by fully
// qualified name.
func StaticField(fqn string) Slot { return Slot{kind: KindStaticField, name: fqn} }

// Array constructs a Slot for an array-element access base[*].
func Array(base instance.ID) Slot { return Slot{kind: KindArray, base: base} }

// Map constructs a Slot for a map-entry access base[key]. Pass hasKey=false
// to represent the key-less over-approximation.
func Map(base instance.ID, key instance.ID, hasKey bool) Slot {
	return Slot{kind: KindMap, base: base, key: key, hasKey: hasKey}
}

func (s Slot) Kind() Kind { return s.kind }

// Name, Base, FieldName, Key, HasKey are field accessors used by the engine's
// exhaustive switches over Kind(); callers must check Kind() before
// reading the variant-specific accessor.
func (s Slot) Name() string        { return s.name }
func (s Slot) Base() instance.ID   { return s.base }
func (s Slot) FieldName() string   { return s.field }
func (s Slot) Key() instance.ID    { return s.key }
func (s Slot) HasKey() bool        { return s.hasKey }

func (s Slot) String() string {
	switch s.kind {
	case KindVar:
		return s.name
	case KindField:
		return fmt.Sprintf("i%d.%s", s.base, s.field)
	case KindStaticField:
		return "static:" + s.name
	case KindArray:
		return fmt.Sprintf("i%d[*]", s.base)
	case KindMap:
		if s.hasKey {
			return fmt.Sprintf("i%d[i%d]", s.base, s.key)
		}
		return fmt.Sprintf("i%d[*]", s.base)
	default:
		return "<invalid-slot>"
	}
}
