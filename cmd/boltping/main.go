// Command boltping is a tiny diagnostic client: one connect/RUN/PULL/GOODBYE
// round trip against a Bolt server, printing the negotiated version, server
// agent string, and any rows the query returns.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/go-bolt/boltconn/internal/bolt/auth"
	"github.com/go-bolt/boltconn/internal/bolt/conn"
	"github.com/go-bolt/boltconn/internal/bolt/stream"
	"github.com/go-bolt/boltconn/internal/logger"
	"github.com/spf13/cobra"
)

var (
	flagAddress  string
	flagUser     string
	flagPassword string
	flagQuery    string
	flagTLS      bool
	flagTimeout  time.Duration
	flagLogLevel string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "boltping",
		Short: "Ping a Bolt server: handshake, authenticate, run a query, disconnect",
		Long: `boltping drives a single Bolt connection through its full lifecycle —
TCP dial, Bolt handshake, HELLO/LOGON authentication, one RUN/PULL round
trip, and GOODBYE — and reports what it learned along the way.`,
		RunE: runPing,
	}

	rootCmd.Flags().StringVar(&flagAddress, "address", "127.0.0.1:7687", "Bolt server address (host:port)")
	rootCmd.Flags().StringVar(&flagUser, "user", "neo4j", "basic auth principal")
	rootCmd.Flags().StringVar(&flagPassword, "password", "", "basic auth credentials")
	rootCmd.Flags().StringVar(&flagQuery, "query", "RETURN 1 AS ping", "Cypher query to RUN")
	rootCmd.Flags().BoolVar(&flagTLS, "tls", false, "negotiate TLS before the Bolt handshake")
	rootCmd.Flags().DurationVar(&flagTimeout, "timeout", 10*time.Second, "overall deadline for the whole round trip")
	rootCmd.Flags().StringVar(&flagLogLevel, "log-level", "", "override BOLT_LOG_LEVEL for this run (debug, info, warn, error)")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runPing(cmd *cobra.Command, args []string) error {
	if flagLogLevel != "" {
		if err := logger.SetLevel(flagLogLevel); err != nil {
			return err
		}
	}
	log := logger.Logger()

	ctx, cancel := context.WithTimeout(context.Background(), flagTimeout)
	defer cancel()

	cfg := conn.DefaultConfig(flagAddress)
	cfg.UserAgent = "boltping/1.0"
	if flagPassword != "" {
		cfg.AuthToken = auth.Basic(flagUser, flagPassword, "")
	}
	if flagTLS {
		cfg.TLS = stream.TLSOptions{Strategy: stream.TLSSystemRoots}
	}

	c, err := conn.Establish(ctx, cfg)
	if err != nil {
		log.Error("establish failed", "error", err)
		return err
	}
	defer func() {
		_ = c.Terminate(ctx, true)
	}()

	fmt.Printf("connected: version=%s server=%q connection_id=%q utc_patch=%v\n",
		c.NegotiatedVersion(), c.ServerAgent(), c.ServerConnectionID(), c.UTCPatchActive())

	rowNum := 0
	summary, err := c.RunAndPullAll(ctx, flagQuery, nil, nil, func(values []any) error {
		rowNum++
		fmt.Printf("record %d: %v\n", rowNum, values)
		return nil
	})
	if err != nil {
		log.Error("query failed", "error", err)
		return err
	}

	fmt.Printf("done: fields=%v rows=%d bookmark=%q\n", summary.Fields(), rowNum, summary.Bookmark())
	return nil
}
