package main

import "github.com/forPelevin/linerank/internal/cli"

func main() {
	cli.Main()
}
