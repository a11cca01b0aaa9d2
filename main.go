package main

import "github.com/dmorgan81/modelsweep/cmd"

func main() {
	cmd.Execute()
}
