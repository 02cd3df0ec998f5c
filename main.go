package main

import (
	"github.com/luma/svdrp/cmd"
)

func main() {
	cmd.Execute()
}
