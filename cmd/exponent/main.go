package main

import "github.com/exponent-ml/exponent/internal/cli"

func main() {
	cli.Execute()
}
