package main

import (
	"os"

	"ricochet.dev/ricochet/cmd/ricochet/cmd"
	"ricochet.dev/ricochet/internal/rerrors"
)

func main() {
	if err := cmd.Execute(); err != nil {
		if rerrors.IsUsage(err) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
