package command

import "strings"

// Markers scanned for in tool output. Matching is case-insensitive.
const (
	ErrorMarker   = "error:"
	WarningMarker = "warning:"
)

// Inspection holds the output lines that carry error or warning markers.
type Inspection struct {
	Errors   []string
	Warnings []string
}

// HasErrors reports whether any error marker was seen.
func (i Inspection) HasErrors() bool { return len(i.Errors) > 0 }

// Inspect scans lines for error and warning markers. A zero exit code is not
// enough for tools like psql that report statement errors on stdout.
func Inspect(lines []string) Inspection {
	var in Inspection
	for _, line := range lines {
		lower := strings.ToLower(line)
		switch {
		case strings.Contains(lower, ErrorMarker):
			in.Errors = append(in.Errors, line)
		case strings.Contains(lower, WarningMarker):
			in.Warnings = append(in.Warnings, line)
		}
	}
	return in
}
