// Package main provides the entry point for the chatsessions CLI.
package main

import (
	"fmt"
	"os"

	"github.com/joshbot/chatsessions/cmd/chatsessions/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
