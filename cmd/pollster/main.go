package main

import "github.com/vietddude/pollster/internal/cli"

func main() {
	cli.Execute()
}
