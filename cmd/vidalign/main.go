package main

import "github.com/forPelevin/vidalign/internal/cli"

func main() {
	cli.Main()
}
