// The main package for the searchscout executable.
package main

import (
	"github.com/searchscout/searchscout/cmd"
)

func main() {
	cmd.Execute()
}
