package main

import (
	"os"

	"github.com/asyrjasalo/augent/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
