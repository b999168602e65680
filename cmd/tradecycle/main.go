package main

import (
	"os"

	"github.com/wonny/tradecycle/cmd/tradecycle/commands"
)

// main is the entry point for the tradecycle CLI
// ⭐ 통합 CLI 진입점: go run ./cmd/tradecycle [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
