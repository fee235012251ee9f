package main

import "github.com/pitwall-sim/pitwall/cmd"

func main() {
	cmd.Execute()
}
