package main

import (
	"os"

	"github.com/okubit/humid/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
