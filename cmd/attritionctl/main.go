package main

import (
	"os"

	"github.com/miradorstack/attrition-predictor/internal/cli/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
