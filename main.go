package main

import (
	"github.com/luma/goxlr/cmd"
)

func main() {
	cmd.Execute()
}
