package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// TokenProvider supplies access tokens. *client.Dispatcher implements it.
type TokenProvider interface {
	AccessToken(ctx context.Context) (string, error)
	Renew(ctx context.Context) error
}

// InterceptorConfig configures the client interceptors.
type InterceptorConfig struct {
	// Config holds the metadata key configuration.
	*Config

	// PublicMethods is a set of method names called without a token.
	// Keys should be full method names like "/package.Service/Method".
	PublicMethods map[string]bool
}

// DefaultInterceptorConfig returns a config that attaches a token to every call.
func DefaultInterceptorConfig() *InterceptorConfig {
	return &InterceptorConfig{
		Config:        DefaultConfig(),
		PublicMethods: make(map[string]bool),
	}
}

// NewPublicMethodsConfig creates a config with the specified public methods.
func NewPublicMethodsConfig(publicMethods ...string) *InterceptorConfig {
	config := DefaultInterceptorConfig()
	for _, method := range publicMethods {
		config.PublicMethods[method] = true
	}
	return config
}

func ensureConfig(config *InterceptorConfig) *InterceptorConfig {
	if config == nil {
		config = DefaultInterceptorConfig()
	}
	if config.Config == nil {
		config.Config = DefaultConfig()
	}
	config.Config.EnsureDefaults()
	return config
}

// UnaryClientInterceptor returns a gRPC unary client interceptor that attaches
// the access token. A call rejected with Unauthenticated triggers one renewal
// and one retry; if the renewal fails the original error is returned.
func UnaryClientInterceptor(tp TokenProvider, config *InterceptorConfig) grpc.UnaryClientInterceptor {
	config = ensureConfig(config)

	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		if config.PublicMethods[method] {
			return invoker(ctx, method, req, reply, cc, opts...)
		}

		token, err := tp.AccessToken(ctx)
		if err != nil {
			return err
		}
		err = invoker(TokenToOutgoingContextWithConfig(ctx, token, config.Config), method, req, reply, cc, opts...)
		if status.Code(err) != codes.Unauthenticated {
			return err
		}

		token, ok := renewed(ctx, tp)
		if !ok {
			return err
		}
		return invoker(TokenToOutgoingContextWithConfig(ctx, token, config.Config), method, req, reply, cc, opts...)
	}
}

// StreamClientInterceptor returns a gRPC stream client interceptor that
// attaches the access token when the stream is opened, retrying the open once
// after a renewal if it is rejected with Unauthenticated.
func StreamClientInterceptor(tp TokenProvider, config *InterceptorConfig) grpc.StreamClientInterceptor {
	config = ensureConfig(config)

	return func(ctx context.Context, desc *grpc.StreamDesc, cc *grpc.ClientConn, method string, streamer grpc.Streamer, opts ...grpc.CallOption) (grpc.ClientStream, error) {
		if config.PublicMethods[method] {
			return streamer(ctx, desc, cc, method, opts...)
		}

		token, err := tp.AccessToken(ctx)
		if err != nil {
			return nil, err
		}
		cs, err := streamer(TokenToOutgoingContextWithConfig(ctx, token, config.Config), desc, cc, method, opts...)
		if status.Code(err) != codes.Unauthenticated {
			return cs, err
		}

		token, ok := renewed(ctx, tp)
		if !ok {
			return nil, err
		}
		return streamer(TokenToOutgoingContextWithConfig(ctx, token, config.Config), desc, cc, method, opts...)
	}
}

func renewed(ctx context.Context, tp TokenProvider) (string, bool) {
	if err := tp.Renew(ctx); err != nil {
		return "", false
	}
	token, err := tp.AccessToken(ctx)
	if err != nil {
		return "", false
	}
	return token, true
}
