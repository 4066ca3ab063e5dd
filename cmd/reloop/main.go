// Package main is the single-binary entrypoint for ReLoop.
package main

import "github.com/reloop-eco/reloop/internal/cli"

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	cli.Execute(version)
}
