package main

import "github.com/conveyorhq/conveyor/internal/cli"

func main() {
	cli.Execute()
}
