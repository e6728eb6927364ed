package main

import (
	"ratehub/internal/cli"
)

func main() {
	cli.Execute()
}
