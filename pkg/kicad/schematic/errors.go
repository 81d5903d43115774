package schematic

import "fmt"

// NotFoundError reports a referenced element absent from the document.
type NotFoundError struct {
	Kind string // "symbol", "wire", "no_connect", "junction", "label"
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

// StructuralError reports a document that violates a structural invariant,
// such as a duplicate reference designator.
type StructuralError struct {
	Msg string
}

func (e *StructuralError) Error() string { return e.Msg }
