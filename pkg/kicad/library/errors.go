package library

import "fmt"

// NotFoundError reports a symbol, library, or footprint that no search root
// contains.
type NotFoundError struct {
	Kind string // "library", "symbol", "footprint"
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.Name)
}

// InheritanceDepthError reports an extends chain that exceeds the depth
// bound or terminates without pin geometry.
type InheritanceDepthError struct {
	LibID string
	Chain []string
	Msg   string
}

func (e *InheritanceDepthError) Error() string {
	return fmt.Sprintf("cannot resolve pins for %q: %s (chain: %v)", e.LibID, e.Msg, e.Chain)
}
