package grpcx

import (
	"context"
	"errors"

	"github.com/cwrk-planet/chat-service/internal/domain"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	AdminServiceName = "chat.admin.v1.Admin"
	statsMethod      = "/" + AdminServiceName + "/Stats"
)

type StatsSource interface {
	Stats() domain.RegistryStats
}

// AdminServer is the server API for chat.admin.v1.Admin.
type AdminServer interface {
	Stats(ctx context.Context, in *emptypb.Empty) (*structpb.Struct, error)
}

// Descriptor for chat.admin.v1.Admin over the well-known Empty and Struct types.
var adminServiceDesc = grpc.ServiceDesc{
	ServiceName: AdminServiceName,
	HandlerType: (*AdminServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Stats", Handler: adminStatsHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "chat/admin/v1/admin.proto",
}

func adminStatsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AdminServer).Stats(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: statsMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(AdminServer).Stats(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

type Server struct {
	stats  StatsSource
	health *health.Server
}

func NewServer(stats StatsSource) *Server {
	return &Server{stats: stats, health: health.NewServer()}
}

// Register installs the admin and health services and marks them serving.
func Register(grpcServer *grpc.Server, s *Server) {
	grpcServer.RegisterService(&adminServiceDesc, s)
	healthpb.RegisterHealthServer(grpcServer, s.health)

	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	s.health.SetServingStatus(AdminServiceName, healthpb.HealthCheckResponse_SERVING)
}

// Shutdown flips every health status to NOT_SERVING.
func (s *Server) Shutdown() {
	s.health.Shutdown()
}

func (s *Server) Stats(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	if err := ctx.Err(); err != nil {
		return nil, toStatus(err)
	}
	st := s.stats.Stats()
	out, err := structpb.NewStruct(map[string]any{
		"activeRooms": st.ActiveRooms,
		"maxRooms":    st.MaxRooms,
		"members":     st.Members,
	})
	if err != nil {
		return nil, toStatus(err)
	}
	return out, nil
}

func toStatus(err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// AdminClient calls chat.admin.v1.Admin over an existing connection.
type AdminClient struct {
	cc grpc.ClientConnInterface
}

func NewAdminClient(cc grpc.ClientConnInterface) *AdminClient {
	return &AdminClient{cc: cc}
}

func (c *AdminClient) Stats(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, statsMethod, &emptypb.Empty{}, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
