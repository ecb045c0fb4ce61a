package ir

import (
	"fmt"
	"strconv"
	"strings"
)

// isPlainIdentifier reports whether s needs no backtick quoting when
// serialized: identifiers containing non-identifier characters are
// wrapped in backticks.
func isPlainIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		isLetter := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || r == '_'
		isDigit := r >= '0' && r <= '9'
		if i == 0 && !isLetter {
			return false
		}
		if !isLetter && !isDigit {
			return false
		}
	}
	return true
}

// quoteIdent wraps s in backticks unless it is already a plain identifier.
func quoteIdent(s string) string {
	if isPlainIdentifier(s) {
		return s
	}
	return "`" + s + "`"
}

// locationWidth computes ceil(log10(lineCount))+1, the zero-padding width
// for #L<NNN>. labels.
func locationWidth(lineCount int) int {
	if lineCount <= 1 {
		return 1
	}
	// For n >= 2, ceil(log10(n)) is the number of decimal digits of n-1.
	return len(strconv.Itoa(lineCount-1)) + 1
}

// Print renders body using a fixed textual convention: zero-padded
// location labels, user labels, mandatory call annotations
// (@signature/@kind), and return-kind annotations.
func Print(body Body) string {
	width := locationWidth(len(body.Locations))
	var sb strings.Builder
	for _, loc := range body.Locations {
		writeLocationLabel(&sb, loc, width)
		sb.WriteString(loc.Stmt.String())
		writeAnnotations(&sb, loc.Stmt)
		sb.WriteString("\n")
	}
	return sb.String()
}

func writeLocationLabel(sb *strings.Builder, loc Location, width int) {
	if loc.Label != "" {
		fmt.Fprintf(sb, "#%s. ", quoteIdent(string(loc.Label)))
		return
	}
	fmt.Fprintf(sb, "#L%0*d. ", width, loc.Index)
}

func writeAnnotations(sb *strings.Builder, s Stmt) {
	switch s.Kind {
	case StmtAssign, StmtCall:
		if s.Call != nil {
			fmt.Fprintf(sb, " @signature `%s` @kind %s", s.Call.Signature, s.Call.Kind)
		}
	case StmtReturn:
		fmt.Fprintf(sb, " @kind %s", s.ReturnKind)
	}
}
