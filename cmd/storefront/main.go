package main

import (
	"fmt"
	"os"

	"github.com/fjod/go_cart/storefront/internal/apperr"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", apperr.Message(err))
		os.Exit(1)
	}
}
