package main

import "github.com/naka-gawa/github-pr-exporter/cmd"

func main() {
	cmd.Execute()
}
