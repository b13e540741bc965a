package bazel

import (
	"fmt"

	"github.com/bazelbuild/buildtools/build"
	"go.lsp.dev/protocol"
)

// Target is one build target declared by a rule call.
type Target struct {
	// Name is the local target identifier from the name attribute.
	Name string

	// Kind is the declaring rule identifier (go_library, cc_test, ...).
	Kind string

	// Range spans the entire rule call.
	Range protocol.Range

	// KindRange spans just the rule identifier.
	KindRange protocol.Range
}

// Attribute is a keyword argument of a rule call.
type Attribute struct {
	Name  string
	Range protocol.Range
}

// StringLiteral is a string expression with its source range.
type StringLiteral struct {
	Value string
	Range protocol.Range
}

// Span is a half-open byte range into the source text.
type Span struct {
	Start, End int
}

// ExtractTargets parses BUILD file text and returns every rule call that has
// a literal name attribute. Calls without a name (load statements, macros
// invoked for effect) are skipped.
func ExtractTargets(src []byte) ([]Target, error) {
	f, err := build.ParseBuild("BUILD", src)
	if err != nil {
		return nil, fmt.Errorf("parsing BUILD file: %w", err)
	}

	var targets []Target
	walkFile(f, func(expr build.Expr) {
		call, ok := expr.(*build.CallExpr)
		if !ok {
			return
		}
		ident, ok := call.X.(*build.Ident)
		if !ok {
			return
		}
		name := attrString(call, "name")
		if name == "" {
			return
		}

		callStart, callEnd := call.Span()
		identStart, identEnd := ident.Span()
		targets = append(targets, Target{
			Name:      name,
			Kind:      ident.Name,
			Range:     rangeFrom(callStart, callEnd),
			KindRange: rangeFrom(identStart, identEnd),
		})
	})
	return targets, nil
}

// ExtractAttributes returns every keyword argument name of every rule call.
func ExtractAttributes(src []byte) ([]Attribute, error) {
	f, err := build.ParseBuild("BUILD", src)
	if err != nil {
		return nil, fmt.Errorf("parsing BUILD file: %w", err)
	}

	var attrs []Attribute
	walkFile(f, func(expr build.Expr) {
		call, ok := expr.(*build.CallExpr)
		if !ok {
			return
		}
		for _, arg := range call.List {
			assign, ok := arg.(*build.AssignExpr)
			if !ok {
				continue
			}
			ident, ok := assign.LHS.(*build.Ident)
			if !ok {
				continue
			}
			start, end := ident.Span()
			attrs = append(attrs, Attribute{Name: ident.Name, Range: rangeFrom(start, end)})
		}
	})
	return attrs, nil
}

// ExtractStrings returns every string literal with its range. The range
// covers the quotes.
func ExtractStrings(src []byte) ([]StringLiteral, error) {
	f, err := build.ParseBuild("BUILD", src)
	if err != nil {
		return nil, fmt.Errorf("parsing BUILD file: %w", err)
	}

	var strs []StringLiteral
	walkFile(f, func(expr build.Expr) {
		s, ok := expr.(*build.StringExpr)
		if !ok {
			return
		}
		start, end := s.Span()
		strs = append(strs, StringLiteral{Value: s.Value, Range: rangeFrom(start, end)})
	})
	return strs, nil
}

// DepsAttrs returns the byte span of every `deps = [...]` keyword argument,
// in document order. The span covers the whole argument, from the "deps"
// identifier through the closing bracket.
func DepsAttrs(src []byte) ([]Span, error) {
	f, err := build.ParseBuild("BUILD", src)
	if err != nil {
		return nil, fmt.Errorf("parsing BUILD file: %w", err)
	}

	var spans []Span
	walkFile(f, func(expr build.Expr) {
		call, ok := expr.(*build.CallExpr)
		if !ok {
			return
		}
		for _, arg := range call.List {
			assign, ok := arg.(*build.AssignExpr)
			if !ok {
				continue
			}
			ident, ok := assign.LHS.(*build.Ident)
			if !ok || ident.Name != "deps" {
				continue
			}
			if _, ok := assign.RHS.(*build.ListExpr); !ok {
				continue
			}
			start, end := assign.Span()
			spans = append(spans, Span{Start: start.Byte, End: end.Byte})
		}
	})
	return spans, nil
}

// InDepsAttr reports whether the byte offset falls inside a deps attribute.
// Unparsable text is never inside one.
func InDepsAttr(src []byte, offset int) bool {
	spans, err := DepsAttrs(src)
	if err != nil {
		return false
	}
	for _, sp := range spans {
		if offset >= sp.Start && offset <= sp.End {
			return true
		}
	}
	return false
}

// walkFile visits every expression in the file, including nested ones, so
// targets declared inside macros or list comprehensions are still found.
func walkFile(f *build.File, visit func(build.Expr)) {
	for _, stmt := range f.Stmt {
		build.Walk(stmt, func(x build.Expr, stk []build.Expr) {
			visit(x)
		})
	}
}

// attrString returns the literal string value of a call's keyword argument,
// or "" if absent or not a plain string.
func attrString(call *build.CallExpr, name string) string {
	for _, arg := range call.List {
		assign, ok := arg.(*build.AssignExpr)
		if !ok {
			continue
		}
		ident, ok := assign.LHS.(*build.Ident)
		if !ok || ident.Name != name {
			continue
		}
		if s, ok := assign.RHS.(*build.StringExpr); ok {
			return s.Value
		}
	}
	return ""
}

// rangeFrom converts buildtools 1-based positions to a 0-based LSP range.
func rangeFrom(start, end build.Position) protocol.Range {
	return protocol.Range{
		Start: positionFrom(start),
		End:   positionFrom(end),
	}
}

func positionFrom(p build.Position) protocol.Position {
	line, char := uint32(0), uint32(0)
	if p.Line > 0 {
		line = uint32(p.Line - 1)
	}
	if p.LineRune > 0 {
		char = uint32(p.LineRune - 1)
	}
	return protocol.Position{Line: line, Character: char}
}
