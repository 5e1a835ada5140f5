package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/patrickwarner/openbidbridge/internal/analytics"
	"github.com/patrickwarner/openbidbridge/internal/config"
	"github.com/patrickwarner/openbidbridge/internal/observability"
)

func main() {
	logger, err := observability.InitLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	var id string
	var dsn string
	var timeout time.Duration
	flag.StringVar(&id, "id", "", "arbitration request ID")
	flag.StringVar(&dsn, "dsn", "", "ClickHouse DSN (defaults to CLICKHOUSE_DSN)")
	flag.DurationVar(&timeout, "timeout", 10*time.Second, "query timeout")
	flag.Parse()

	if id == "" {
		fmt.Fprintln(os.Stderr, "id required")
		os.Exit(1)
	}
	if dsn == "" {
		dsn = config.Load().ClickHouseDSN
	}

	a, err := analytics.InitClickHouse(dsn, 2, 1, 5*time.Minute, time.Minute)
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect clickhouse: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	events, err := a.GetEventsByRequestID(ctx, id)
	if err != nil {
		fmt.Fprintf(os.Stderr, "query events: %v\n", err)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(events); err != nil {
		fmt.Fprintf(os.Stderr, "encode events: %v\n", err)
		os.Exit(1)
	}
}
