package main

import "github.com/naka-gawa/github-usage/cmd"

func main() {
	cmd.Execute()
}
