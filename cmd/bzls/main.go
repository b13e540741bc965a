package main

import (
	"os"

	"github.com/albertocavalcante/bzl/internal/cmd/bzls"
)

func main() {
	os.Exit(bzls.Run(os.Args[1:]))
}
