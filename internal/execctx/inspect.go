package execctx

import (
	"fmt"
	"strings"
)

// Inspect implements inspect_request: resolve the identifier at cursorPos
// and render a pretty directory listing, per §4.4.
func (ec *ExecutionContext) Inspect(code string, cursorPosUTF16 int) (found bool, text string) {
	bytePos := cursorPosToBytePos(code, cursorPosUTF16)
	if bytePos > len(code) {
		bytePos = len(code)
	}
	// Extend rightward too, so a cursor placed mid-identifier still resolves
	// the whole name.
	end := bytePos
	for end < len(code) && isIdentCont(code[end]) {
		end++
	}
	start := bytePos
	for start > 0 && (isIdentCont(code[start-1]) || code[start-1] == '.') {
		start--
	}
	name := code[start:end]
	if name == "" {
		return false, ""
	}

	segments := strings.Split(name, ".")
	v, ok := lookup(ec.locals, ec.globals, segments[0])
	if !ok {
		return false, ""
	}
	for _, seg := range segments[1:] {
		nv, err := getAttr(v, seg)
		if err != nil {
			return false, ""
		}
		v = nv
	}
	return true, prettyInspect(name, v)
}

func prettyInspect(name string, v Value) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s\n", name)
	fmt.Fprintf(&sb, "Type:  %s\n", typeName(v))
	fmt.Fprintf(&sb, "Value: %s\n", repr(v))
	if d, ok := v.(*dictValue); ok && len(d.keys) > 0 {
		sb.WriteString("Attributes:\n")
		for _, k := range sortedDictKeys(d) {
			fmt.Fprintf(&sb, "  %s\n", k)
		}
	}
	if f, ok := v.(*funcValue); ok {
		fmt.Fprintf(&sb, "Signature: %s(%s)\n", f.name, strings.Join(f.params, ", "))
	}
	return sb.String()
}
