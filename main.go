package main

import (
	"stemlab/cmd"
)

func main() {
	cmd.Execute()
}
