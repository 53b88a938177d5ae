// Package requestctx carries caller metadata through request contexts.
package requestctx

import (
	"context"
	"strings"
)

type clientContextKey struct{}

// Client describes the caller that initiated a request.
type Client struct {
	IPAddress string
	UserAgent string
}

// WithClient stores caller metadata in context.
func WithClient(ctx context.Context, client Client) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	client.IPAddress = strings.TrimSpace(client.IPAddress)
	client.UserAgent = strings.TrimSpace(client.UserAgent)
	return context.WithValue(ctx, clientContextKey{}, client)
}

// ClientFromContext returns the caller metadata stored in context.
func ClientFromContext(ctx context.Context) Client {
	if ctx == nil {
		return Client{}
	}
	client, _ := ctx.Value(clientContextKey{}).(Client)
	return client
}
