package main

import (
	"errors"
	"os"

	choracmder "github.com/papercomputeco/chora/cmd/chora"
	invokecmder "github.com/papercomputeco/chora/cmd/chora/invoke"
)

func main() {
	cmd := choracmder.NewChoraCmd()
	if err := cmd.Execute(); err != nil {
		var exitErr *invokecmder.ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(1)
	}
}
