package main

import (
	"os"

	"github.com/spec-kit/helpdesk-sla/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
