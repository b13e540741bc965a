// Package depsort normalizes deps attributes in BUILD files.
//
// Each deps list is rewritten with one dependency per line, duplicates
// removed keeping the first occurrence, and entries sorted bytewise.
// Trailing line comments stay attached to their entry. Everything
// outside the deps lists is left untouched.
package depsort

import (
	"sort"
	"strings"

	"github.com/albertocavalcante/bzl/internal/bazel"
)

type entry struct {
	dep     string
	comment string
}

// Format rewrites every deps attribute in src and returns the result.
// Input that is already normalized comes back byte-identical. A parse
// error leaves src alone and is returned to the caller.
func Format(src []byte) ([]byte, error) {
	spans, err := bazel.DepsAttrs(src)
	if err != nil {
		return nil, err
	}

	out := string(src)
	// Spans are replaced back to front so earlier offsets stay valid.
	for i := len(spans) - 1; i >= 0; i-- {
		s := spans[i]
		replacement := formatList(parseEntries(out[s.Start:s.End]))
		out = out[:s.Start] + replacement + out[s.End:]
	}
	return []byte(out), nil
}

// parseEntries scans a deps assignment for string entries and the line
// comments that follow them. Quoting style and line layout of the input
// do not matter; the output format is fixed.
func parseEntries(text string) []entry {
	var entries []entry
	i := 0
	for i < len(text) {
		switch c := text[i]; c {
		case '"', '\'':
			end := closingQuote(text, i)
			if end < 0 {
				return entries
			}
			entries = append(entries, entry{dep: text[i+1 : end]})
			i = end + 1
		case '#':
			eol := strings.IndexByte(text[i:], '\n')
			if eol < 0 {
				eol = len(text) - i
			}
			comment := strings.TrimSpace(text[i : i+eol])
			if n := len(entries); n > 0 && entries[n-1].comment == "" && sameLineAsLastEntry(text, i) {
				entries[n-1].comment = comment
			}
			i += eol
		default:
			i++
		}
	}
	return dedupe(entries)
}

// closingQuote returns the index of the quote closing the string that
// opens at text[open], honoring backslash escapes, or -1.
func closingQuote(text string, open int) int {
	q := text[open]
	for i := open + 1; i < len(text); i++ {
		switch text[i] {
		case '\\':
			i++
		case q:
			return i
		}
	}
	return -1
}

// sameLineAsLastEntry reports whether only spacing and a comma separate
// position pos from the previous entry's closing quote. A comment on its
// own line belongs to no entry and is dropped.
func sameLineAsLastEntry(text string, pos int) bool {
	for i := pos - 1; i >= 0; i-- {
		switch text[i] {
		case ' ', '\t', ',':
		case '"', '\'':
			return true
		default:
			return false
		}
	}
	return false
}

// dedupe keeps the first occurrence of each dependency, comment included.
func dedupe(entries []entry) []entry {
	seen := make(map[string]bool, len(entries))
	kept := entries[:0]
	for _, e := range entries {
		if seen[e.dep] {
			continue
		}
		seen[e.dep] = true
		kept = append(kept, e)
	}
	return kept
}

func formatList(entries []entry) string {
	if len(entries) == 0 {
		return "deps = []"
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].dep < entries[j].dep })

	var b strings.Builder
	b.WriteString("deps = [\n")
	for _, e := range entries {
		b.WriteString("        \"")
		b.WriteString(e.dep)
		b.WriteString("\",")
		if e.comment != "" {
			b.WriteString("  ")
			b.WriteString(e.comment)
		}
		b.WriteString("\n")
	}
	b.WriteString("    ]")
	return b.String()
}
