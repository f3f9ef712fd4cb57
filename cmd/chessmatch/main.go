package main

import "github.com/mcoot/chessmatch-go/internal/cli"

func main() {
	cli.Execute()
}
