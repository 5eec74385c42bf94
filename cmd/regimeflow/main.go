package main

import (
	"os"

	"github.com/voltlab/regimeflow/cmd/regimeflow/commands"
)

// main is the entry point for the RegimeFlow CLI
// ⭐ 통합 CLI 진입점: go run ./cmd/regimeflow [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
