package main

import (
	"context"
	"fmt"
	"os"

	"pinfe/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "pinfe: %v\n", err)
		os.Exit(1)
	}
}
