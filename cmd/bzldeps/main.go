package main

import (
	"os"

	"github.com/albertocavalcante/bzl/internal/cmd/bzldeps"
)

func main() {
	os.Exit(bzldeps.Run(os.Args[1:]))
}
