package suite

import "fmt"

// ParseError reports a suite decoding failure. Line is 0 when unknown.
type ParseError struct {
	File    string
	Line    int
	Call    string
	Message string
}

func (e *ParseError) Error() string {
	loc := e.File
	if loc == "" {
		loc = "suite"
	}
	if e.Line > 0 {
		loc = fmt.Sprintf("%s:%d", loc, e.Line)
	}
	if e.Call != "" {
		return fmt.Sprintf("%s: call %q: %s", loc, e.Call, e.Message)
	}
	return loc + ": " + e.Message
}
