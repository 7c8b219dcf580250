package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"

	grpcx "github.com/cwrk-planet/chat-service/internal/transport/grpc"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
)

var statsJSON bool

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print registry stats (active rooms, limit, members)",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cc, err := dial()
		if err != nil {
			return err
		}
		defer cc.Close()

		ctx, cancel := callContext(cmd)
		defer cancel()
		return printStats(ctx, cc, cmd.OutOrStdout(), statsJSON)
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "print raw JSON")
}

func printStats(ctx context.Context, cc grpc.ClientConnInterface, w io.Writer, asJSON bool) error {
	out, err := grpcx.NewAdminClient(cc).Stats(ctx)
	if err != nil {
		return fmt.Errorf("stats: %w", err)
	}
	m := out.AsMap()

	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(m)
	}

	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "%-12s %v\n", k, m[k])
	}
	return nil
}
