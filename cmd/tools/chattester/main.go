package main

import (
	"os"
)

func main() {
	if err := newRootCmd(defaultCompleter).Execute(); err != nil {
		os.Exit(1)
	}
}
