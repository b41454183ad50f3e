package main

import "github.com/nodeforge/nodeforge/internal/cli"

func main() {
	cli.Execute()
}
