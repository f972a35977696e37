// Package grpc carries Monexa access tokens on outgoing gRPC calls. The
// interceptors take tokens from the client dispatcher, so gRPC calls share
// its renewal and forced-logout handling with HTTP calls.
package grpc

import (
	"context"
	"strings"

	"google.golang.org/grpc/metadata"
)

// Default metadata settings for the bearer token.
// These can be customized via Config if needed.
const (
	// DefaultMetadataKeyAuthorization is the gRPC metadata key carrying the token
	DefaultMetadataKeyAuthorization = "authorization"

	// DefaultScheme prefixes the token value
	DefaultScheme = "Bearer"
)

// Config holds the metadata key configuration for the bearer token.
type Config struct {
	// MetadataKeyAuthorization is the gRPC metadata key for the token.
	// Defaults to "authorization".
	MetadataKeyAuthorization string

	// Scheme is written before the token. Defaults to "Bearer".
	Scheme string
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		MetadataKeyAuthorization: DefaultMetadataKeyAuthorization,
		Scheme:                   DefaultScheme,
	}
}

// EnsureDefaults fills in default values for any unset fields.
func (c *Config) EnsureDefaults() {
	if c.MetadataKeyAuthorization == "" {
		c.MetadataKeyAuthorization = DefaultMetadataKeyAuthorization
	}
	if c.Scheme == "" {
		c.Scheme = DefaultScheme
	}
}

// TokenToOutgoingContext adds the bearer token to outgoing gRPC context metadata.
func TokenToOutgoingContext(ctx context.Context, token string) context.Context {
	return TokenToOutgoingContextWithConfig(ctx, token, nil)
}

// TokenToOutgoingContextWithConfig adds the token using the specified config.
func TokenToOutgoingContextWithConfig(ctx context.Context, token string, config *Config) context.Context {
	if config == nil {
		config = DefaultConfig()
	}
	config.EnsureDefaults()
	return metadata.AppendToOutgoingContext(ctx, config.MetadataKeyAuthorization, config.Scheme+" "+token)
}

// TokenFromIncomingContext returns the bearer token of an incoming call, or
// "" when none was sent. Servers and test doubles use it to check what the
// interceptors attached.
func TokenFromIncomingContext(ctx context.Context) string {
	return TokenFromIncomingContextWithConfig(ctx, nil)
}

// TokenFromIncomingContextWithConfig reads the token using the specified config.
func TokenFromIncomingContextWithConfig(ctx context.Context, config *Config) string {
	if config == nil {
		config = DefaultConfig()
	}
	config.EnsureDefaults()

	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	values := md.Get(config.MetadataKeyAuthorization)
	if len(values) == 0 {
		return ""
	}
	// the last value wins when a retry appended a newer token
	value := values[len(values)-1]
	prefix := config.Scheme + " "
	if len(value) > len(prefix) && strings.EqualFold(value[:len(prefix)], prefix) {
		return value[len(prefix):]
	}
	return ""
}
