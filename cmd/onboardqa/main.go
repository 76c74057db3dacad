// Package main provides the entry point for the onboardqa CLI.
package main

import (
	"os"

	"github.com/Aman-CERP/onboardqa/cmd/onboardqa/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
