// Package main is the entry point of jsonquery.
package main

import (
	"github.com/anjanb/questdb/cmd"
)

func main() {
	cmd.Execute()
}
