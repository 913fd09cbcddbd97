package tree

import (
	"fmt"
	"strings"
)

// CyclicStructureError reports a binding that transitively contains itself.
// Path starts at the first binding of the cycle and ends with it again.
type CyclicStructureError struct {
	Path []string
}

func (e *CyclicStructureError) Error() string {
	return "tree: binding cycle " + strings.Join(e.Path, " -> ")
}

// ForwardReferenceError reports a formula reading a stage that has not been
// evaluated yet (the same stage or a later one of the node).
type ForwardReferenceError struct {
	NodeID    string
	StageID   int
	Position  int
	Reference string
	Formula   string
}

func (e *ForwardReferenceError) Error() string {
	return fmt.Sprintf("tree: %s stage %d (#%d) references %s before it is evaluated in %q",
		e.NodeID, e.StageID, e.Position, e.Reference, e.Formula)
}
