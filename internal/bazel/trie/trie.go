// Package trie implements the target path trie used for label completion.
//
// The trie indexes every build target in a workspace by the characters of
// its package path followed by the characters of its rule name. The ':'
// separating package from name and the '/' between package segments are
// treated as boundaries, not key characters, so one prefix walk serves
// completion for bare names, ":name" and "//pkg/path:name" alike.
package trie

// RuleInfo describes one discovered build target. It is immutable once
// inserted; duplicate declarations of the same label each get their own
// entry in the terminal bucket.
type RuleInfo struct {
	// Name is the local target identifier.
	Name string

	// FullBuildPath is the fully qualified label, "//<package>:<name>".
	FullBuildPath string
}

type node struct {
	isEnd bool

	// isPackageEnd marks interior package segment boundaries. Kept as a
	// navigation hook for walking by package component; prefix search does
	// not depend on it.
	isPackageEnd bool

	// rules holds every RuleInfo whose full path terminates here, in
	// insertion order. Non-empty only when isEnd is set.
	rules []RuleInfo

	children map[rune]*node
}

func newNode() *node {
	return &node{children: make(map[rune]*node)}
}

// TargetTrie is the whole index. It is not safe for concurrent use; callers
// hold their own lock (see index.Index).
type TargetTrie struct {
	root *node
}

// New returns an empty trie.
func New() *TargetTrie {
	return &TargetTrie{root: newNode()}
}

// splitLabel splits a "package/path:name" key into its package path and rule
// name. The FIRST ':' is authoritative; any further colons are ordinary rule
// name characters. A key without ':' is a bare rule name in the root package.
// Insert and search both go through here so their key spaces always agree.
func splitLabel(path string) (pkg, name string) {
	for i := 0; i < len(path); i++ {
		if path[i] == ':' {
			return path[:i], path[i+1:]
		}
	}
	return "", path
}

// Insert adds a rule under the given "package/path:name" (or bare "name")
// key. It never fails: malformed keys degrade to whatever splitLabel
// produces, and an empty key inserts nothing because the root is never a
// terminal.
func (t *TargetTrie) Insert(path string, rule RuleInfo) {
	pkg, name := splitLabel(path)
	cur := t.root

	if pkg != "" {
		parts := splitSegments(pkg)
		for i, part := range parts {
			for _, c := range part {
				child, ok := cur.children[c]
				if !ok {
					child = newNode()
					cur.children[c] = child
				}
				cur = child
			}
			if i < len(parts)-1 {
				cur.isPackageEnd = true
			}
		}
	}

	for _, c := range name {
		child, ok := cur.children[c]
		if !ok {
			child = newNode()
			cur.children[c] = child
		}
		cur = child
	}

	if cur == t.root {
		return
	}
	cur.isEnd = true
	cur.rules = append(cur.rules, rule)
}

// StartsWith returns the rule bucket of every terminal node in the subtree
// reached by consuming prefix. An empty prefix returns every bucket in the
// trie. The walk aborts with an empty result as soon as a required character
// is missing. Bucket order is traversal-dependent; callers wanting a stable
// order sort the flattened results themselves.
func (t *TargetTrie) StartsWith(prefix string) [][]RuleInfo {
	cur := t.root

	if prefix != "" {
		var pkg, namePrefix string
		if i := indexColon(prefix); i >= 0 {
			pkg, namePrefix = prefix[:i], prefix[i+1:]
		} else {
			pkg = prefix
		}

		for _, part := range splitSegments(pkg) {
			for _, c := range part {
				child, ok := cur.children[c]
				if !ok {
					return nil
				}
				cur = child
			}
		}

		for _, c := range namePrefix {
			child, ok := cur.children[c]
			if !ok {
				return nil
			}
			cur = child
		}
	}

	var result [][]RuleInfo
	stack := []*node{cur}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if n.isEnd && len(n.rules) > 0 {
			result = append(result, n.rules)
		}
		for _, child := range n.children {
			stack = append(stack, child)
		}
	}
	return result
}

func indexColon(s string) int {
	for i := 0; i < len(s); i++ {
		if s[i] == ':' {
			return i
		}
	}
	return -1
}

// splitSegments splits a package path on '/' and drops empty segments, so
// "a//b" and "/a/b" key identically to "a/b".
func splitSegments(pkg string) []string {
	var parts []string
	start := 0
	for i := 0; i <= len(pkg); i++ {
		if i == len(pkg) || pkg[i] == '/' {
			if i > start {
				parts = append(parts, pkg[start:i])
			}
			start = i + 1
		}
	}
	return parts
}
