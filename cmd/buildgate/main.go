package main

import (
	"os"

	"github.com/buildgate/buildgate/internal/pkg/cli"
)

func main() {
	// Run command
	cmd := cli.NewRootCommand(os.Stdin, os.Stdout, os.Stderr)
	os.Exit(cmd.Execute())
}
