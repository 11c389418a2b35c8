package main

import (
	"xorkevin.dev/ibu/cmd"
)

func main() {
	cmd.New().Execute()
}
