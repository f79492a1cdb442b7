package main

import (
	"context"
	"fmt"
	"os"

	"github.com/maidsofhonourafrica/escrow-service/internal/app/bootstrap"
	"github.com/maidsofhonourafrica/escrow-service/internal/cli"
)

func main() {
	root := cli.NewRootCommand(func(ctx context.Context, configPath string) (cli.Operations, func(), error) {
		runtime, err := bootstrap.NewRuntime(ctx, configPath)
		if err != nil {
			return nil, nil, err
		}
		return runtime.Service(), runtime.Close, nil
	})
	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
