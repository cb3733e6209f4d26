package main

import "github.com/OpenTraceLab/tapengine/cmd/tapctl/cmd"

func main() {
	cmd.Execute()
}
