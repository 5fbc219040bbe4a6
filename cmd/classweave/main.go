package main

import (
	"os"

	"github.com/roach88/classweave/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
