package main

import (
	"os"

	"github.com/Legit-prep/live-quiz-socket/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
