package main

import "github.com/emiliopalmerini/promptreg/internal/cli"

func main() {
	cli.Execute()
}
