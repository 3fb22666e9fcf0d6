package main

import "github.com/meshfs/meshfs/cmd"

func main() {
	cmd.Execute()
}
