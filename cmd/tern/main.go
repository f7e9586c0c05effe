package main

import (
	"fmt"
	"os"

	"github.com/seqarc/tern/cmd/tern/commands"
)

func main() {

	err := commands.Execute()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
