package main

import (
	"os"

	"github.com/vowstar/llm-git/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
