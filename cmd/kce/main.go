package main

import "github.com/OpenCircuitKit/kicadedit/cmd/kce/cmd"

func main() {
	cmd.Execute()
}
