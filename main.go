package main

import (
	"github.com/jonesrussell/gigharvest/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		cmd.Exit(err)
	}
}
