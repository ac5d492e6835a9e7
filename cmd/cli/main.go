package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/parlatext/parlatext/cmd/cli/commands"
	"github.com/parlatext/parlatext/internal/logger"
)

func main() {
	// Optional .env for local development; a missing file is fine
	_ = godotenv.Load()

	logger.InitializeAndConfigure()

	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
