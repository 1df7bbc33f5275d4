package execctx

import (
	"regexp"
	"strings"

	"golang.org/x/exp/slices"
)

var identTokenRe = regexp.MustCompile(`[A-Za-z0-9_.]+$`)

// CompletionResult is the shape a complete_request reply carries, per
// SPEC_FULL.md §4.4.
type CompletionResult struct {
	Matches     []string
	CursorStart int
	CursorEnd   int
}

// Complete implements the naive identifier-at-cursor completer: extract the
// `[A-Za-z0-9_.]+` token ending at cursorPos, resolve its prefix through
// locals then globals, and prefix-match the tail segment.
func (ec *ExecutionContext) Complete(code string, cursorPosUTF16 int) CompletionResult {
	bytePos := cursorPosToBytePos(code, cursorPosUTF16)
	if bytePos > len(code) {
		bytePos = len(code)
	}
	head := code[:bytePos]
	tok := identTokenRe.FindString(head)
	cursorStartByte := bytePos - len(tok)

	result := CompletionResult{
		CursorStart: bytePosToUTF16(code, cursorStartByte),
		CursorEnd:   cursorPosUTF16,
	}

	// Dict-subscript context: "d[" with nothing typed yet offers the dict's
	// keys, per §4.4's "resolved object is a dict and the context is '['".
	if tok == "" && cursorStartByte > 0 && head[cursorStartByte-1] == '[' {
		name := identTokenRe.FindString(head[:cursorStartByte-1])
		if v, ok := lookup(ec.locals, ec.globals, name); ok {
			if d, ok := v.(*dictValue); ok {
				result.Matches = sortedDictKeys(d)
			}
		}
		return result
	}

	segments := strings.Split(tok, ".")
	if len(segments) == 1 {
		result.Matches = ec.completeName(segments[0])
		return result
	}
	// Resolve every segment but the last as an attribute chain.
	prefix := segments[:len(segments)-1]
	last := segments[len(segments)-1]
	v, ok := lookup(ec.locals, ec.globals, prefix[0])
	if !ok {
		return result
	}
	for _, seg := range prefix[1:] {
		nv, err := getAttr(v, seg)
		if err != nil {
			return result
		}
		v = nv
	}
	result.Matches = completeAttr(v, last)
	return result
}

func (ec *ExecutionContext) completeName(prefix string) []string {
	seen := map[string]bool{}
	var names []string
	for _, n := range ec.locals.names() {
		if strings.HasPrefix(n, prefix) && !seen[n] {
			seen[n] = true
			names = append(names, n)
		}
	}
	for _, n := range ec.globals.names() {
		if strings.HasPrefix(n, prefix) && !seen[n] {
			seen[n] = true
			names = append(names, n)
		}
	}
	return orderCompletions(names)
}

// completeAttr matches attribute names of a resolved object by prefix. Only
// dictValue exposes enumerable attributes in this subset (§3a); builtins
// and functions have none.
func completeAttr(v Value, prefix string) []string {
	d, ok := v.(*dictValue)
	if !ok {
		return nil
	}
	var names []string
	for _, k := range sortedDictKeys(d) {
		if strings.HasPrefix(k, prefix) {
			names = append(names, k)
		}
	}
	return names
}

// orderCompletions sorts plain identifier matches public-first, then
// dunders, then single-underscore privates, matching §4.4's attribute
// ordering rule applied uniformly to name completion too.
func orderCompletions(names []string) []string {
	var pub, dunder, priv []string
	for _, n := range names {
		switch {
		case strings.HasPrefix(n, "__") && strings.HasSuffix(n, "__"):
			dunder = append(dunder, n)
		case strings.HasPrefix(n, "_"):
			priv = append(priv, n)
		default:
			pub = append(pub, n)
		}
	}
	slices.Sort(pub)
	slices.Sort(dunder)
	slices.Sort(priv)
	return append(append(pub, dunder...), priv...)
}
