package main

import (
	"os"

	"github.com/wesleyorama2/runner/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
