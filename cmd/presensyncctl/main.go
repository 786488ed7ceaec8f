package main

import (
	"context"
	"fmt"
	"os"

	"github.com/presensync/presensync/backend/go-services/internal/cli"
	"github.com/presensync/presensync/backend/go-services/pkg/logger"
)

func main() {
	logger.Init(os.Getenv("LOG_LEVEL"))
	defer logger.Sync()

	if err := cli.NewRootCommand(nil).ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
