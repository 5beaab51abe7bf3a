package main

import (
	"fmt"
	"os"

	"github.com/partite-ai/wacomock/cmd/wacomock/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
