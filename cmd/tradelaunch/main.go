package main

import (
	"os"

	"github.com/algotrade/tradelaunch/internal/cli"
)

func main() {
	os.Exit(cli.Execute(os.Args[1:]))
}
