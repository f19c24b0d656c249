// Package grpc exposes the link service over gRPC.
package grpc

import (
	"context"
	"errors"
	"math"
	"net"
	"time"

	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/logging"
	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/recovery"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/atinyakov/shortlink/internal/app/service"
	"github.com/atinyakov/shortlink/internal/intercepters"
	"github.com/atinyakov/shortlink/internal/models"
	"github.com/atinyakov/shortlink/internal/ssrf"
	"github.com/atinyakov/shortlink/internal/storage"
)

// Server wraps the gRPC server and dependencies.
type Server struct {
	grpcServer *grpc.Server
	addr       string
	logger     *zap.Logger
}

// New creates a gRPC server serving svc.
func New(addr string, logger *zap.Logger, svc service.URLServiceIface) *Server {
	s := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			intercepters.RequestIDInterceptor,
			logging.UnaryServerInterceptor(
				intercepters.InterceptorLogger(logger),
				logging.WithLogOnEvents(logging.FinishCall),
				logging.WithFieldsFromContext(intercepters.LogFields),
			),
			recovery.UnaryServerInterceptor(recovery.WithRecoveryHandler(func(p any) error {
				logger.Error("gRPC handler panic", zap.Any("panic", p))
				return status.Error(codes.Internal, "internal error")
			})),
		),
	)

	RegisterShortenerServer(s, &ShortenerServer{
		Service: svc,
		Logger:  logger,
	})

	return &Server{
		grpcServer: s,
		addr:       addr,
		logger:     logger,
	}
}

// Start listens on the configured address and serves until stopped.
func (s *Server) Start() error {
	lis, err := net.Listen("tcp", s.addr)
	if err != nil {
		s.logger.Error("gRPC server failed to listen", zap.Error(err))
		return err
	}

	s.logger.Info("gRPC server listening", zap.String("addr", s.addr))
	return s.Serve(lis)
}

func (s *Server) Serve(lis net.Listener) error {
	if err := s.grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}

// GracefulStop shuts down the server gracefully.
func (s *Server) GracefulStop() {
	s.grpcServer.GracefulStop()
}

// --- Implementation of the gRPC interface ---

type ShortenerServer struct {
	Service service.URLServiceIface
	Logger  *zap.Logger
}

func (s *ShortenerServer) Shorten(ctx context.Context, in *structpb.Struct) (*wrapperspb.StringValue, error) {
	req, err := shortenRequest(in)
	if err != nil {
		return nil, err
	}

	short, err := s.Service.Shorten(ctx, req)
	if err != nil {
		return nil, s.toStatus(err)
	}

	return wrapperspb.String(short), nil
}

func (s *ShortenerServer) Resolve(ctx context.Context, in *wrapperspb.StringValue) (*wrapperspb.StringValue, error) {
	long, err := s.Service.Resolve(ctx, in.GetValue())
	if err != nil {
		return nil, s.toStatus(err)
	}

	return wrapperspb.String(long), nil
}

func (s *ShortenerServer) Info(ctx context.Context, in *wrapperspb.StringValue) (*structpb.Struct, error) {
	info, err := s.Service.Info(ctx, in.GetValue())
	if err != nil {
		return nil, s.toStatus(err)
	}

	var expires interface{}
	if info.ExpiresAt != nil {
		expires = info.ExpiresAt.UTC().Format(time.RFC3339Nano)
	}

	out, err := structpb.NewStruct(map[string]interface{}{
		"short_code":  info.ShortCode,
		"long_url":    info.LongURL,
		"created_at":  info.CreatedAt.UTC().Format(time.RFC3339Nano),
		"expires_at":  expires,
		"is_active":   info.IsActive,
		"click_count": info.ClickCount,
	})
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}

	return out, nil
}

func shortenRequest(in *structpb.Struct) (models.ShortenRequest, error) {
	fields := in.GetFields()

	req := models.ShortenRequest{URL: fields["url"].GetStringValue()}
	if req.URL == "" {
		return req, status.Error(codes.InvalidArgument, "url is required")
	}

	if v, ok := fields["custom_alias"]; ok {
		if _, isNull := v.GetKind().(*structpb.Value_NullValue); !isNull {
			alias := v.GetStringValue()
			req.CustomAlias = &alias
		}
	}

	if v, ok := fields["expiry_minutes"]; ok {
		if _, isNull := v.GetKind().(*structpb.Value_NullValue); !isNull {
			n, isNum := v.GetKind().(*structpb.Value_NumberValue)
			if !isNum || n.NumberValue != math.Trunc(n.NumberValue) || math.Abs(n.NumberValue) > math.MaxInt32 {
				return req, status.Error(codes.InvalidArgument, "expiry_minutes must be an integer")
			}
			minutes := int(n.NumberValue)
			req.ExpiryMinutes = &minutes
		}
	}

	return req, nil
}

// toStatus maps service errors to gRPC codes.
func (s *ShortenerServer) toStatus(err error) error {
	switch {
	case errors.Is(err, ssrf.ErrForbiddenTarget):
		return status.Error(codes.PermissionDenied, err.Error())
	case errors.Is(err, ssrf.ErrInvalidURL),
		errors.Is(err, service.ErrInvalidAlias),
		errors.Is(err, service.ErrInvalidExpiry):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, storage.ErrAliasTaken):
		return status.Error(codes.AlreadyExists, err.Error())
	case errors.Is(err, storage.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, service.ErrExpired):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		if s.Logger != nil {
			s.Logger.Error("gRPC request failed", zap.Error(err))
		}
		return status.Error(codes.Internal, "internal error")
	}
}
