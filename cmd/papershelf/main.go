package main

import (
	"os"

	"github.com/joho/godotenv"
)

func main() {
	// .env is optional; values already in the environment win.
	_ = godotenv.Load()

	if err := Execute(); err != nil {
		os.Exit(1)
	}
}
