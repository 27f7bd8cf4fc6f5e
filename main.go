package main

import (
	"os"

	"github.com/tonhe/nocwatch/cmd"
)

func main() {
	cmd.Execute(os.Args[1:])
}
