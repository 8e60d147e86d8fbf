package main

import "github.com/mchmarny/pricer/pkg/cli"

func main() {
	cli.Execute()
}
