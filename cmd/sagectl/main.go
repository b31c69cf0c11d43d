package main

import (
	"os"

	"github.com/sage-invoice/sage/cmd/sagectl/cli"
)

func main() {
	os.Exit(cli.Execute(cli.DefaultDeps(), os.Args[1:]))
}
