package main

import "github.com/coderoom/coderoom/cmd/coderoom/cmd"

func main() {
	cmd.Execute()
}
