package main

import "github.com/agentic-research/sleuth/cmd"

func main() {
	cmd.Execute()
}
