package runtime

import (
	"encoding/json"
	"fmt"
	"strings"
)

// prettyWidth is the maximum line width for pprint output. Monospace code
// lines in the rendered document cannot be wider.
const prettyWidth = 65

func prettyFormat(v interface{}) string {
	if b, err := json.MarshalIndent(v, "", "  "); err == nil {
		return wrapLines(string(b), prettyWidth)
	}
	// Unmarshalable values (funcs, channels, cyclic structures) fall back
	// to Go syntax.
	return wrapLines(fmt.Sprintf("%#v", v), prettyWidth)
}

func wrapLines(s string, width int) string {
	lines := strings.Split(s, "\n")
	var out []string
	for _, line := range lines {
		for len(line) > width {
			out = append(out, line[:width])
			line = line[width:]
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}
