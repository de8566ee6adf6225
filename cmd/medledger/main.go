package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/medledger/medledger/pkg/apperr"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		if errors.Is(err, apperr.ErrNoSession) || errors.Is(err, apperr.ErrAccountDrift) {
			fmt.Fprintln(os.Stderr, "Run 'medledger login' to start a new session.")
		}
		os.Exit(1)
	}
}
