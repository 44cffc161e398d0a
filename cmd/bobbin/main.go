package main

import (
	"context"
	"errors"
	"fmt"
	"os"
)

func main() {
	err := newRootCommand().Execute()
	if err == nil {
		return
	}
	// Interrupted runs already logged their state; the exit code is enough.
	if !errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, "bobbin:", err)
	}
	os.Exit(1)
}
