package main

import (
	"os"

	"github.com/victornm/quizjudge/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
