package template

import (
	"encoding/json"
	"regexp"
)

var placeholder = regexp.MustCompile(`\{\{\s*([A-Za-z_][A-Za-z0-9_]*)\s*\}\}`)

// Substitute replaces {{ name }} placeholders in a raw JSON document with
// the matching variable. Values are JSON-string escaped so they cannot break
// out of the string they appear in. Unknown placeholders are left verbatim.
func Substitute(doc []byte, vars map[string]string) []byte {
	if len(vars) == 0 {
		return doc
	}
	return placeholder.ReplaceAllFunc(doc, func(match []byte) []byte {
		name := string(placeholder.FindSubmatch(match)[1])
		v, ok := vars[name]
		if !ok {
			return match
		}
		quoted, _ := json.Marshal(v)
		return quoted[1 : len(quoted)-1]
	})
}
