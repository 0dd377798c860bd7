package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// InterceptorConfig configures the auth interceptor behavior.
type InterceptorConfig struct {
	// Config holds the metadata key configuration.
	*Config

	// Verify validates a session token and returns the account id.
	// Typically SessionSigner.Verify.
	Verify func(tokenString string) (accountID string, err error)

	// RequireAuth when true rejects unauthenticated requests.
	// When false, requests proceed but AccountIDFromContext returns empty.
	RequireAuth bool

	// PublicMethods is a set of method names that don't require auth.
	// Only used when RequireAuth is true.
	// Keys should be full method names like "/package.Service/Method".
	PublicMethods map[string]bool
}

// NewInterceptorConfig returns a config that requires auth for every
// method except the listed ones.
func NewInterceptorConfig(verify func(string) (string, error), publicMethods ...string) *InterceptorConfig {
	config := &InterceptorConfig{
		Config:        DefaultConfig(),
		Verify:        verify,
		RequireAuth:   true,
		PublicMethods: make(map[string]bool),
	}
	for _, method := range publicMethods {
		config.PublicMethods[method] = true
	}
	return config
}

// OptionalAuthConfig returns a config that allows unauthenticated requests.
func OptionalAuthConfig(verify func(string) (string, error)) *InterceptorConfig {
	return &InterceptorConfig{
		Config:        DefaultConfig(),
		Verify:        verify,
		RequireAuth:   false,
		PublicMethods: make(map[string]bool),
	}
}

func (config *InterceptorConfig) ensureDefaults() *InterceptorConfig {
	if config == nil {
		config = &InterceptorConfig{RequireAuth: true}
	}
	if config.Config == nil {
		config.Config = DefaultConfig()
	}
	config.Config.EnsureDefaults()
	if config.PublicMethods == nil {
		config.PublicMethods = make(map[string]bool)
	}
	return config
}

// UnaryAuthInterceptor returns a gRPC unary interceptor that verifies the
// session token from metadata and stashes the account id in the context.
func UnaryAuthInterceptor(config *InterceptorConfig) grpc.UnaryServerInterceptor {
	config = config.ensureDefaults()

	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		accountID := config.verifyRequest(ctx)

		if config.RequireAuth && !config.PublicMethods[info.FullMethod] {
			if accountID == "" {
				return nil, status.Error(codes.Unauthenticated, "authentication required")
			}
		}

		if accountID != "" {
			ctx = ContextWithAccountID(ctx, accountID)
		}
		return handler(ctx, req)
	}
}

// StreamAuthInterceptor returns a gRPC stream interceptor with the same
// verification behavior as UnaryAuthInterceptor.
func StreamAuthInterceptor(config *InterceptorConfig) grpc.StreamServerInterceptor {
	config = config.ensureDefaults()

	return func(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		accountID := config.verifyRequest(ss.Context())

		if config.RequireAuth && !config.PublicMethods[info.FullMethod] {
			if accountID == "" {
				return status.Error(codes.Unauthenticated, "authentication required")
			}
		}

		if accountID != "" {
			ss = &authenticatedStream{ServerStream: ss, accountID: accountID}
		}
		return handler(srv, ss)
	}
}

// verifyRequest validates the token on the request, returning "" on any
// failure. Expired and tampered tokens are indistinguishable to callers.
func (config *InterceptorConfig) verifyRequest(ctx context.Context) string {
	if config.Verify == nil {
		return ""
	}
	token := tokenFromMetadata(ctx, config.Config)
	if token == "" {
		return ""
	}
	accountID, err := config.Verify(token)
	if err != nil {
		return ""
	}
	return accountID
}

// authenticatedStream overrides Context to carry the verified account id.
type authenticatedStream struct {
	grpc.ServerStream
	accountID string
}

func (s *authenticatedStream) Context() context.Context {
	return ContextWithAccountID(s.ServerStream.Context(), s.accountID)
}
