package main

import (
	"os"
)

var version = "dev"

// go build -ldflags "-X main.version=v0.1.0" -o pingcsv ./cmd/pingcsv

func main() {
	root, opts := newRootCmd()
	if err := root.Execute(); err != nil {
		opts.printer().Error(err)
		os.Exit(1)
	}
}
