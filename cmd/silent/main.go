package main

import (
	"os"

	"silent/cmd/silent/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
