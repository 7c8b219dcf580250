package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/cwrk-planet/chat-service/config"
	"github.com/cwrk-planet/chat-service/internal/service"
	"github.com/cwrk-planet/chat-service/internal/store"
	grpcx "github.com/cwrk-planet/chat-service/internal/transport/grpc"
	httpx "github.com/cwrk-planet/chat-service/internal/transport/http"
	"github.com/cwrk-planet/chat-service/internal/transport/ws"
	"github.com/cwrk-planet/chat-service/pkg/logger"

	"github.com/benbjohnson/clock"
	"google.golang.org/grpc"
)

func main() {
	// --- config ---
	cfg, err := config.LoadConfig()
	if err != nil {
		println("failed to load config:", err.Error())
		os.Exit(1)
	}

	logger.Init(cfg.LoggerConfig())
	slog.Info("starting chat-service",
		"env", cfg.Logging.Env, "version", cfg.Logging.Version)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("chat-service stopped with error", "err", err)
		os.Exit(1)
	}
	slog.Info("chat-service stopped")
}

func run(ctx context.Context, cfg *config.Config) error {
	// --- state & services ---
	clk := clock.New()
	st := store.New()
	chatSvc := service.NewChatService(clk)
	memberSvc := service.NewMemberService()
	roomSvc := service.NewRoomService(st, clk, chatSvc, memberSvc, service.RoomOptions{
		MaxRooms:   cfg.Chat.MaxRooms,
		Inactivity: cfg.Chat.RoomInactivity,
	})
	defer roomSvc.Close()

	limiter := service.NewRateLimiter(st, clk, service.RateLimitConfig{
		Window:           cfg.Chat.RateWindow,
		MaxMessages:      cfg.Chat.MaxMessages,
		MaxMessageLength: cfg.Chat.MaxMessageLength,
		LengthCooldown:   cfg.Chat.LengthCooldown,
	})

	// --- WS Hub & Server ---
	hub := ws.NewHub()
	wsServer := ws.NewServer(hub, roomSvc, limiter, ws.Options{
		SendBuffer:    cfg.Chat.SendBuffer,
		PingInterval:  cfg.Chat.PingInterval,
		MaxFrameBytes: cfg.Chat.MaxFrameBytes,
		CheckOrigin:   ws.NewOriginChecker(cfg.HTTP.AllowedOrigins),
	})

	// --- HTTP ---
	router := httpx.NewRouter(httpx.Deps{
		Handler:        httpx.NewHandler(roomSvc),
		WS:             wsServer.HandleWS,
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
	})
	httpSrv := httpx.NewServer(httpx.Config{
		Addr:            cfg.HTTP.Addr,
		ReadTimeout:     cfg.HTTP.ReadTimeout,
		WriteTimeout:    cfg.HTTP.WriteTimeout,
		IdleTimeout:     cfg.HTTP.IdleTimeout,
		ShutdownTimeout: cfg.HTTP.ShutdownTimeout,
	}, router)

	httpLis, err := net.Listen("tcp", cfg.HTTP.Addr)
	if err != nil {
		return fmt.Errorf("http listen: %w", err)
	}

	// --- gRPC admin (optional) ---
	var (
		grpcServer *grpc.Server
		admin      *grpcx.Server
		grpcLis    net.Listener
	)
	if cfg.GRPC.Addr != "" {
		grpcLis, err = net.Listen("tcp", cfg.GRPC.Addr)
		if err != nil {
			_ = httpLis.Close()
			return fmt.Errorf("grpc listen: %w", err)
		}
		grpcServer = grpc.NewServer(
			grpc.ChainUnaryInterceptor(grpcx.UnaryServerInterceptor(cfg.GRPC.CallTimeout)),
			grpc.ChainStreamInterceptor(grpcx.StreamServerInterceptor()),
		)
		admin = grpcx.NewServer(roomSvc)
		grpcx.Register(grpcServer, admin)
	}

	// --- run ---
	srvCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	httpErr := make(chan error, 1)
	go func() { httpErr <- httpSrv.Serve(srvCtx, httpLis) }()

	grpcErr := make(chan error, 1)
	if grpcServer != nil {
		go func() {
			slog.Info("grpc listening", "addr", grpcLis.Addr().String())
			if err := grpcServer.Serve(grpcLis); err != nil {
				grpcErr <- fmt.Errorf("grpc serve: %w", err)
			}
		}()
	}

	var runErr error
	httpDone := false
	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	case runErr = <-httpErr:
		httpDone = true
	case runErr = <-grpcErr:
	}

	// --- graceful shutdown ---
	if admin != nil {
		admin.Shutdown()
	}

	shCtx, shCancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer shCancel()
	if err := wsServer.Shutdown(shCtx); err != nil {
		slog.Warn("ws shutdown incomplete", "err", err)
	}

	cancel()
	if !httpDone {
		if err := <-httpErr; err != nil && runErr == nil {
			runErr = err
		}
	}
	if grpcServer != nil {
		grpcServer.GracefulStop()
	}

	slog.Info("stats at shutdown", "rooms", roomSvc.Stats().ActiveRooms, "logs", chatSvc.Rooms())
	return runErr
}
