package main

import (
	"xorkevin.dev/bitmend/cmd"
)

func main() {
	cmd.New().Execute()
}
