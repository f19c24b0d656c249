package grpc

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/atinyakov/shortlink/internal/models"
)

// Client calls shortlink.v1.Shortener.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) Shorten(ctx context.Context, req models.ShortenRequest, opts ...grpc.CallOption) (string, error) {
	fields := map[string]interface{}{"url": req.URL}
	if req.CustomAlias != nil {
		fields["custom_alias"] = *req.CustomAlias
	}
	if req.ExpiryMinutes != nil {
		fields["expiry_minutes"] = *req.ExpiryMinutes
	}

	in, err := structpb.NewStruct(fields)
	if err != nil {
		return "", err
	}

	out := new(wrapperspb.StringValue)
	if err := c.cc.Invoke(ctx, ShortenMethod, in, out, opts...); err != nil {
		return "", err
	}
	return out.GetValue(), nil
}

func (c *Client) Resolve(ctx context.Context, code string, opts ...grpc.CallOption) (string, error) {
	out := new(wrapperspb.StringValue)
	if err := c.cc.Invoke(ctx, ResolveMethod, wrapperspb.String(code), out, opts...); err != nil {
		return "", err
	}
	return out.GetValue(), nil
}

func (c *Client) Info(ctx context.Context, code string, opts ...grpc.CallOption) (*models.LinkInfo, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, InfoMethod, wrapperspb.String(code), out, opts...); err != nil {
		return nil, err
	}

	f := out.GetFields()
	info := &models.LinkInfo{
		ShortCode:  f["short_code"].GetStringValue(),
		LongURL:    f["long_url"].GetStringValue(),
		IsActive:   f["is_active"].GetBoolValue(),
		ClickCount: int64(f["click_count"].GetNumberValue()),
	}

	if t, err := time.Parse(time.RFC3339Nano, f["created_at"].GetStringValue()); err == nil {
		info.CreatedAt = t
	}
	if s := f["expires_at"].GetStringValue(); s != "" {
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			info.ExpiresAt = &t
		}
	}

	return info, nil
}
