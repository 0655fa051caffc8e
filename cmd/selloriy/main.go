package main

import "github.com/selloriy/selloriy/internal/cli"

func main() {
	cli.Execute()
}
