package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

var (
	addr    string
	timeout time.Duration
)

var rootCmd = &cobra.Command{
	Use:           "chatctl",
	Short:         "Inspect a running chat-service over its gRPC admin port",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&addr, "addr", "localhost:9090", "admin gRPC address")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 5*time.Second, "per-call timeout")
}

// dial opens an insecure client connection; the admin port is meant for
// the local network only.
func dial() (*grpc.ClientConn, error) {
	cc, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return cc, nil
}

func callContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), timeout)
}
