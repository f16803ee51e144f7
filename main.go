package main

import "github.com/kozaktomas/lost-trace/cmd"

func main() {
	cmd.Execute()
}
