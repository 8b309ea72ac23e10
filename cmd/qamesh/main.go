package main

import (
	"os"

	"github.com/hupe1980/qamesh/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
