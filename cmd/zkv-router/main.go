package main

import (
	"os"

	"zkv-router/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
