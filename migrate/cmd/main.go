package main

import (
	"context"
	"fmt"
	"os"

	"github.com/legit-games/authcode-service/migrate"
	"go.uber.org/zap"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	opts := migrate.OptionsFromEnv()
	opts.Logger = logger.Sugar()
	if opts.Driver == "" || opts.DSN == "" {
		fmt.Fprintln(os.Stderr, "AUTHCODE_MIGRATE_DRIVER and AUTHCODE_MIGRATE_DSN are required")
		os.Exit(2)
	}
	if err := migrate.Run(context.Background(), opts); err != nil {
		fmt.Fprintf(os.Stderr, "migrate failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("migrate completed successfully")
}
