package main

import "quillpost/internal/cli"

func main() {
	cli.Execute()
}
