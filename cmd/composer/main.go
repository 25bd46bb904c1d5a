package main

import (
	"context"
	"os"
	"time"

	"github.com/lunchbox-market/order-composer/internal/backend"
	"github.com/lunchbox-market/order-composer/internal/cli"
	"github.com/lunchbox-market/order-composer/internal/restday"
)

var version = "dev"

func main() {
	deps := cli.Dependencies{
		RestDays: func(baseURL string) restday.Fetcher {
			return backend.NewClient(baseURL, 10*time.Second)
		},
		Version: version,
	}

	exitCode := cli.Execute(context.Background(), os.Args[1:], deps, os.Stdout, os.Stderr)
	os.Exit(exitCode)
}
