package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/cwrk-planet/chat-service/internal/domain"
	grpcx "github.com/cwrk-planet/chat-service/internal/transport/grpc"

	"github.com/fatih/color"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"
)

type fixedStats struct{}

func (fixedStats) Stats() domain.RegistryStats {
	return domain.RegistryStats{ActiveRooms: 2, MaxRooms: 35, Members: 5}
}

func startAdmin(t *testing.T) (*grpcx.Server, *grpc.ClientConn) {
	t.Helper()
	color.NoColor = true

	lis := bufconn.Listen(1 << 20)
	gs := grpc.NewServer()
	srv := grpcx.NewServer(fixedStats{})
	grpcx.Register(gs, srv)
	go func() { _ = gs.Serve(lis) }()
	t.Cleanup(gs.Stop)

	cc, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cc.Close() })
	return srv, cc
}

func testCtx(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestPrintStats(t *testing.T) {
	_, cc := startAdmin(t)

	var out bytes.Buffer
	require.NoError(t, printStats(testCtx(t), cc, &out, false))
	require.Equal(t, "activeRooms  2\nmaxRooms     35\nmembers      5\n", out.String())

	out.Reset()
	require.NoError(t, printStats(testCtx(t), cc, &out, true))
	var m map[string]float64
	require.NoError(t, json.Unmarshal(out.Bytes(), &m))
	require.Equal(t, map[string]float64{"activeRooms": 2, "maxRooms": 35, "members": 5}, m)
}

func TestPrintHealth(t *testing.T) {
	srv, cc := startAdmin(t)

	var out bytes.Buffer
	require.NoError(t, printHealth(testCtx(t), cc, &out, grpcx.AdminServiceName))
	require.Equal(t, grpcx.AdminServiceName+" SERVING\n", out.String())

	srv.Shutdown()
	out.Reset()
	require.Error(t, printHealth(testCtx(t), cc, &out, ""))
	require.Equal(t, "(server) NOT_SERVING\n", out.String())
}
