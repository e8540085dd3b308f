package main

import (
	"os"

	"github.com/transmailifier/transmailifier/internal/commands"
)

func main() {
	if err := commands.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
