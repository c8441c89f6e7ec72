package main

import "github.com/weftworks/weft/cli"

func main() {
	cli.Execute()
}
