package main

import (
	"os"

	"eve-industry/internal/cli"
)

var version = "dev"

func main() {
	os.Exit(cli.Execute(version))
}
