// The main package for the sitesignal executable.
package main

import (
	"github.com/sitesignal/sitesignal/cmd"
)

// main defers all execution to the Cobra CLI library.
func main() {
	cmd.Execute()
}
