package lowering

import (
	"github.com/jawa-analysis/heapsum/internal/diagnostics"
	"github.com/jawa-analysis/heapsum/internal/ir"
	"github.com/jawa-analysis/heapsum/internal/token"
)

// pushLoop enters a loop construct, reserving its start/end labels and
// recording the user label attached to it (if any) in the label-stack
// state machine. continueTo defaults to start; a for-loop
// overrides it to its post-step label via setContinueTarget, since there
// continue must run the increment before retesting the condition.
func (c *Ctx) pushLoop(constructPrefix, userLabel string) (start, end ir.Label) {
	start = c.newConstructLabel(constructPrefix + "_start")
	end = c.newConstructLabel(constructPrefix + "_end")
	c.labels = append(c.labels, labelFrame{userLabel: userLabel, start: start, end: end, continueTo: start})
	return start, end
}

// setContinueTarget overrides the innermost frame's continue target,
// used by for-loops whose continue label differs from their start label.
func (c *Ctx) setContinueTarget(label ir.Label) {
	c.labels[len(c.labels)-1].continueTo = label
}

// pushSwitch enters a switch construct. A switch participates in break
// resolution exactly like a loop, but never in continue resolution — an
// unlabeled continue always targets the nearest enclosing loop, skipping
// past any switch frames in between.
func (c *Ctx) pushSwitch(userLabel string) (start, end ir.Label) {
	start = c.newConstructLabel("Switch_start")
	end = c.newConstructLabel("Switch_end")
	c.labels = append(c.labels, labelFrame{userLabel: userLabel, start: start, end: end, isSwitch: true})
	return start, end
}

// popLoop exits the innermost loop/switch construct. An empty stack at
// method end is the terminal state; popping past empty indicates
// a lowering bug, not a bad input — it surfaces as an invariant violation.
func (c *Ctx) popLoop(pos token.Position) error {
	if len(c.labels) == 0 {
		return diagnostics.Invariant(pos, "label stack underflow on loop exit")
	}
	c.labels = c.labels[:len(c.labels)-1]
	return nil
}

// breakTarget resolves break's target label: the innermost enclosing
// construct's end label when unlabeled, or the named construct's end
// label when userLabel is given.
func (c *Ctx) breakTarget(pos token.Position, userLabel string) (ir.Label, error) {
	if userLabel == "" {
		if len(c.labels) == 0 {
			return "", diagnostics.New(pos, diagnostics.CodeScopeMisuse, "break outside any loop or switch")
		}
		return c.labels[len(c.labels)-1].end, nil
	}
	for i := len(c.labels) - 1; i >= 0; i-- {
		if c.labels[i].userLabel == userLabel {
			return c.labels[i].end, nil
		}
	}
	return "", diagnostics.New(pos, diagnostics.CodeScopeMisuse, "break target label %q not found", userLabel)
}

// continueTarget resolves continue's target label analogously, using the
// innermost (or named) construct's start label. Switch frames are never a
// valid continue target, labeled or not: continue always resolves through
// to an enclosing loop.
func (c *Ctx) continueTarget(pos token.Position, userLabel string) (ir.Label, error) {
	if userLabel == "" {
		for i := len(c.labels) - 1; i >= 0; i-- {
			if !c.labels[i].isSwitch {
				return c.labels[i].continueTo, nil
			}
		}
		return "", diagnostics.New(pos, diagnostics.CodeScopeMisuse, "continue outside any loop")
	}
	for i := len(c.labels) - 1; i >= 0; i-- {
		if c.labels[i].userLabel == userLabel && !c.labels[i].isSwitch {
			return c.labels[i].continueTo, nil
		}
	}
	return "", diagnostics.New(pos, diagnostics.CodeScopeMisuse, "continue target label %q not found", userLabel)
}
