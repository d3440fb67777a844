package main

import (
	"context"
	"fmt"
	"os"

	"github.com/XavierBriggs/fortuna/services/livescore/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "livescore: %v\n", err)
		os.Exit(cli.GetExitCode(err))
	}
}
