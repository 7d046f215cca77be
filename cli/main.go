package main

import (
	"os"

	"github.com/techview-systems/leadpixel-stack/cli/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
