package main

import "github.com/stemtools/instrumentalize/internal/cli"

func main() {
	cli.Execute()
}
