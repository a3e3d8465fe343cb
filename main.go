package main

import (
	"TuneScope/cmd"
)

func main() {
	cmd.Execute()
}
