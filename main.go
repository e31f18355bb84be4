package main

import (
	"context"
	"os"

	"github.com/m-mizutani/vestige/pkg/cli"
	"github.com/m-mizutani/vestige/pkg/utils/logging"
)

func main() {
	ctx := context.Background()
	if err := cli.Run(ctx, os.Args); err != nil {
		logging.Default().Error(err.Message)
		os.Exit(err.Code)
	}
}
