package schematic

import (
	"fmt"
	"regexp"
)

// Reference designator: letters then digits, with an optional trailing
// letter for multi-unit symbols (U3A, U3B).
var referencePattern = regexp.MustCompile(`^[A-Za-z]+\d+[A-Za-z]?$`)

// Net name: alphanumeric plus _ - / . + ~, covering hierarchical nets like
// /sheet1/VCC and differential pairs like USB_D+.
var netNamePattern = regexp.MustCompile(`^[A-Za-z0-9_\-/.+~]+$`)

// ValidateReference checks a reference designator like R1, U3, C10, Q2A.
func ValidateReference(ref string) error {
	if !referencePattern.MatchString(ref) {
		return &StructuralError{
			Msg: fmt.Sprintf("invalid reference designator %q: expected letter(s) + number(s), e.g. R1, U3, C10", ref),
		}
	}
	return nil
}

// ValidateNetName checks a net name like VCC, GND, /sheet1/SDA.
func ValidateNetName(name string) error {
	if name == "" {
		return &StructuralError{Msg: "net name cannot be empty"}
	}
	if !netNamePattern.MatchString(name) {
		return &StructuralError{
			Msg: fmt.Sprintf("invalid net name %q: allowed characters are alphanumeric, _, -, /, ., +, ~", name),
		}
	}
	return nil
}

// Validate checks document-level structural invariants: reference
// designators must be unique among non-power symbols, every symbol must
// carry an instances block, and every lib_id used by an instance should
// have a lib_symbols cache entry.
func Validate(sch *Schematic) []error {
	var problems []error

	seen := map[string]bool{}
	for i := range sch.Symbols {
		sym := &sch.Symbols[i]
		ref := sym.Reference()

		if !sym.IsPower() {
			if seen[ref] {
				problems = append(problems, &StructuralError{
					Msg: fmt.Sprintf("duplicate reference designator %q", ref),
				})
			}
			seen[ref] = true

			if err := ValidateReference(ref); err != nil {
				problems = append(problems, err)
			}
		}

		if len(sym.Instances) == 0 {
			problems = append(problems, &StructuralError{
				Msg: fmt.Sprintf("symbol %q has no instances block", ref),
			})
		}

		if sym.LibID != "" {
			if _, cached := sch.LibSymbols[sym.LibID]; !cached {
				problems = append(problems, &StructuralError{
					Msg: fmt.Sprintf("symbol %q uses %q with no lib_symbols cache entry (unrenderable)", ref, sym.LibID),
				})
			}
		}
	}

	return problems
}
