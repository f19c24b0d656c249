package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const ServiceName = "shortlink.v1.Shortener"

const (
	ShortenMethod = "/" + ServiceName + "/Shorten"
	ResolveMethod = "/" + ServiceName + "/Resolve"
	InfoMethod    = "/" + ServiceName + "/Info"
)

// ShortenerAPI is the server side of shortlink.v1.Shortener. Messages are
// protobuf well-known types so no generated code is needed:
//
//	Shorten(Struct{url, custom_alias?, expiry_minutes?}) returns StringValue(short_url)
//	Resolve(StringValue(code)) returns StringValue(long_url)
//	Info(StringValue(code)) returns Struct
type ShortenerAPI interface {
	Shorten(context.Context, *structpb.Struct) (*wrapperspb.StringValue, error)
	Resolve(context.Context, *wrapperspb.StringValue) (*wrapperspb.StringValue, error)
	Info(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
}

// ServiceDesc registers a ShortenerAPI with a grpc.Server.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ShortenerAPI)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Shorten", Handler: shortenHandler},
		{MethodName: "Resolve", Handler: resolveHandler},
		{MethodName: "Info", Handler: infoHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "shortlink/v1/shortener.proto",
}

func RegisterShortenerServer(s grpc.ServiceRegistrar, srv ShortenerAPI) {
	s.RegisterService(&ServiceDesc, srv)
}

func shortenHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ShortenerAPI).Shorten(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ShortenMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ShortenerAPI).Shorten(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func resolveHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ShortenerAPI).Resolve(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ResolveMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ShortenerAPI).Resolve(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

func infoHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ShortenerAPI).Info(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: InfoMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ShortenerAPI).Info(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}
