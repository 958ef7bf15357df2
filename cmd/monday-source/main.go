package main

import (
	"os"

	"github.com/duailibe/monday-source/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
