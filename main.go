package main

import "lampbench/cmd"

func main() {
	cmd.Execute()
}
