package main

import (
	"clipdeck/cmd"
)

func main() {
	cmd.Execute()
}
