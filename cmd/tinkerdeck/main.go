// Command tinkerdeck serves and presents slide decks.
package main

import (
	"os"

	"github.com/livetemplate/tinkerdeck/cmd/tinkerdeck/commands"
)

func main() {
	os.Exit(run())
}

func run() int {
	if err := commands.Execute(); err != nil {
		return 1
	}
	return 0
}
