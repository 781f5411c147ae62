package main

import "github.com/mutusfa/Neurodeck/client/neurodeck-cli/cmd"

func main() {
	cmd.Execute()
}
