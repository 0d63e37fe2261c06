package main

import "github.com/nsyszr/soilcontrol/cmd"

func main() {
	cmd.Execute()
}
