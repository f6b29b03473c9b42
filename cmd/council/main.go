package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/lumatrade/council/cmd/council/cli"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	if err := cli.NewRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
