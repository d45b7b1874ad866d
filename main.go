// The main package for the concepts executable.
package main

import "github.com/JakeFAU/concept-modules/cmd"

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
