package main

import "github.com/favorbank/favorbank/internal/cli"

func main() {
	cli.Execute()
}
