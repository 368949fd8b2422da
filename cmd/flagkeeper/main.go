package main

import (
	"os"

	"github.com/solatis/flagkeeper/cmd/flagkeeper/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
