package main

import "github.com/n0tssss/MCPLink-sub000/cmd"

func main() {
	cmd.Execute()
}
