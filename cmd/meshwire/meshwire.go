package main

import "github.com/meshwire/meshwire/cmd/meshwire/commands"

func main() {
	commands.Execute()
}
