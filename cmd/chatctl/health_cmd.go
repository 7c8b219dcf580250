package main

import (
	"context"
	"fmt"
	"io"

	grpcx "github.com/cwrk-planet/chat-service/internal/transport/grpc"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

var healthCmd = &cobra.Command{
	Use:   "health [service]",
	Short: "Check gRPC health (default: the admin service)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		service := grpcx.AdminServiceName
		if len(args) == 1 {
			service = args[0]
		}

		cc, err := dial()
		if err != nil {
			return err
		}
		defer cc.Close()

		ctx, cancel := callContext(cmd)
		defer cancel()
		return printHealth(ctx, cc, cmd.OutOrStdout(), service)
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
}

// printHealth returns an error when the service is not SERVING so the exit
// code can be used by liveness checks.
func printHealth(ctx context.Context, cc grpc.ClientConnInterface, w io.Writer, service string) error {
	resp, err := healthpb.NewHealthClient(cc).Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		return fmt.Errorf("health %q: %w", service, err)
	}

	st := resp.GetStatus()
	paint := color.New(color.FgRed).SprintFunc()
	if st == healthpb.HealthCheckResponse_SERVING {
		paint = color.New(color.FgGreen).SprintFunc()
	}
	name := service
	if name == "" {
		name = "(server)"
	}
	fmt.Fprintf(w, "%s %s\n", name, paint(st.String()))

	if st != healthpb.HealthCheckResponse_SERVING {
		return fmt.Errorf("%s is %s", name, st)
	}
	return nil
}
