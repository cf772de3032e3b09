package main

import "github.com/shakti7/codemate/cmd/codemate/commands"

func main() {
	commands.Execute()
}
