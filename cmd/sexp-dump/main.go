// sexp-dump is a debugging aid: it parses a KiCad file with the generic
// chewxy/sexp parser and prints the top-level structure, which is handy
// when the typed parsers disagree with a file in the wild.
package main

import (
	"fmt"
	"os"

	"github.com/chewxy/sexp"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: sexp-dump <kicad_file>")
		os.Exit(1)
	}

	data, err := os.ReadFile(os.Args[1])
	if err != nil {
		fmt.Printf("Error reading file: %v\n", err)
		os.Exit(1)
	}

	sexps, err := sexp.ParseString(string(data))
	if err != nil {
		fmt.Printf("Error parsing s-expression: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("File size: %d bytes\n", len(data))
	fmt.Printf("Top-level expressions: %d\n", len(sexps))

	for i, s := range sexps {
		fmt.Printf("[%d] type=%T leaf=%v", i, s, s.IsLeaf())
		if !s.IsLeaf() {
			fmt.Printf(" leaves=%d", s.LeafCount())
		}
		fmt.Println()

		text := fmt.Sprintf("%v", s)
		if len(text) > 200 {
			text = text[:200] + "..."
		}
		fmt.Printf("    %s\n", text)
	}
}
