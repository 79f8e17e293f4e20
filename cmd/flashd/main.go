package main

import "github.com/LeJamon/goflashd/internal/cli"

func main() {
	cli.Execute()
}
