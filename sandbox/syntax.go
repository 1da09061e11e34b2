package sandbox

import (
	"errors"
	"fmt"

	"go.starlark.net/syntax"
)

// parseOptions matches the dialect the worker executes, so anything the
// gate accepts the sandbox can run.
var parseOptions = &syntax.FileOptions{
	Set:             true,
	While:           true,
	TopLevelControl: true,
	GlobalReassign:  true,
	Recursion:       true,
}

// CheckSyntax validates a script without executing it. The returned
// error message carries the line and column of the first failure.
func CheckSyntax(code string) error {
	_, err := parseOptions.Parse("script.star", code, 0)
	if err == nil {
		return nil
	}

	var serr syntax.Error
	if errors.As(err, &serr) {
		return fmt.Errorf("syntax error at line %d col %d: %s", serr.Pos.Line, serr.Pos.Col, serr.Msg)
	}
	return fmt.Errorf("syntax error: %v", err)
}
