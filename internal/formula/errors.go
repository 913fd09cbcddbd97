package formula

import "fmt"

// SyntaxError is a formula that does not parse.
type SyntaxError struct {
	Formula string
	Pos     int
	Msg     string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("formula %q: %s at offset %d", e.Formula, e.Msg, e.Pos)
}

// UnresolvedVariableError is a reference to a name the resolver did not provide.
type UnresolvedVariableError struct {
	Formula string
	Name    string
}

func (e *UnresolvedVariableError) Error() string {
	return fmt.Sprintf("formula %q: unresolved variable %q", e.Formula, e.Name)
}

// DivisionByZeroError is raised when a divisor evaluates to zero.
type DivisionByZeroError struct {
	Formula string
}

func (e *DivisionByZeroError) Error() string {
	return fmt.Sprintf("formula %q: division by zero", e.Formula)
}
