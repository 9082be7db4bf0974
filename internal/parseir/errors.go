package parseir

import (
	"fmt"
	"text/scanner"
)

// SyntaxError reports a parse failure at a line:col position, in the
// style of the original lalrpop-based front end's diagnostics.
type SyntaxError struct {
	Line, Col int
	Msg       string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("parse error at %d:%d: %s", e.Line, e.Col, e.Msg)
}

func (p *parser) errorf(pos scanner.Position, format string, args ...any) error {
	return &SyntaxError{Line: pos.Line, Col: pos.Column, Msg: fmt.Sprintf(format, args...)}
}
