package pcb

import "fmt"

// NotFoundError reports a referenced element absent from the board.
type NotFoundError struct {
	Kind string // "footprint", "pad", "net"
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.Name)
}

// ConflictError reports that the file changed on disk between the read and
// the write of a mutation.
type ConflictError struct {
	Path string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("concurrent modification of %s detected; mutation aborted", e.Path)
}

// StructuralError reports a board that violates a structural invariant.
type StructuralError struct {
	Msg string
}

func (e *StructuralError) Error() string { return e.Msg }
