package main

import (
	"os"

	"github.com/wonny/debtview/cmd/debtview/commands"
)

// main is the entry point for the debtview CLI
// ⭐ 통합 CLI 진입점: go run ./cmd/debtview [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
