package intercepters

import (
	"context"

	"github.com/google/uuid"
	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/logging"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

type contextKey string

const (
	RequestIDKey contextKey = "request-id"
	RealIPKey    contextKey = "real-ip"

	RequestIDHeader = "x-request-id"
	realIPHeader    = "x-real-ip"
)

// RequestIDInterceptor reuses the caller's x-request-id or generates one,
// echoes it in the response header, and stores it together with x-real-ip
// in the context.
func RequestIDInterceptor(
	ctx context.Context,
	req interface{},
	info *grpc.UnaryServerInfo,
	handler grpc.UnaryHandler,
) (interface{}, error) {
	var id string

	md, ok := metadata.FromIncomingContext(ctx)
	if ok {
		if ids := md.Get(RequestIDHeader); len(ids) > 0 && ids[0] != "" {
			id = ids[0]
		}
		if ips := md.Get(realIPHeader); len(ips) > 0 && ips[0] != "" {
			ctx = context.WithValue(ctx, RealIPKey, ips[0])
		}
	}
	if id == "" {
		id = uuid.NewString()
	}

	ctx = context.WithValue(ctx, RequestIDKey, id)
	_ = grpc.SetHeader(ctx, metadata.Pairs(RequestIDHeader, id))

	return handler(ctx, req)
}

// LogFields exposes the request id and real ip to the logging interceptor.
func LogFields(ctx context.Context) logging.Fields {
	var f logging.Fields
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		f = append(f, "request_id", id)
	}
	if ip, ok := ctx.Value(RealIPKey).(string); ok {
		f = append(f, "real_ip", ip)
	}
	return f
}
