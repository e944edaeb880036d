package grpc

import (
	"context"
	"errors"
	"strings"

	"github.com/dmitrijs2005/workflow/internal/common"
	"github.com/dmitrijs2005/workflow/internal/server/auth"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

var authorizationKey = strings.ToLower(common.AuthorizationHeaderName)

// protectedMethods require a valid bearer token.
var protectedMethods = map[string]bool{
	IntrospectMethod: true,
}

func (s *GRPCServer) accessTokenInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {

	if !protectedMethods[info.FullMethod] {
		return handler(ctx, req)
	}

	var header string
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if values := md.Get(authorizationKey); len(values) > 0 {
			header = values[0]
		}
	}

	token, ok := auth.ParseBearer(header)
	if !ok {
		s.metrics.AuthFailed("missing_token")
		return nil, statusFromError(common.ErrorUnauthorized)
	}

	p, err := s.codec.Verify(token)
	if err != nil {
		reason := "invalid_token"
		if errors.Is(err, common.ErrTokenExpired) {
			reason = "expired_token"
		}
		s.metrics.AuthFailed(reason)
		return nil, statusFromError(err)
	}

	return handler(auth.WithPrincipal(ctx, p), req)
}

func withBearer(ctx context.Context, token string) context.Context {
	return metadata.AppendToOutgoingContext(ctx, authorizationKey, common.BearerScheme+" "+token)
}

// statusFromError maps an error kind to a gRPC status without leaking
// internal details.
func statusFromError(err error) error {
	switch {
	case err == nil:
		return nil
	case common.IsAuthenticationError(err):
		return status.Error(codes.Unauthenticated, "unauthenticated")
	case errors.Is(err, common.ErrorForbidden):
		return status.Error(codes.PermissionDenied, "permission denied")
	case errors.Is(err, common.ErrorNotFound):
		return status.Error(codes.NotFound, "not found")
	case errors.Is(err, common.ErrorStoreUnavailable):
		return status.Error(codes.Unavailable, "store unavailable")
	case errors.Is(err, common.ErrorValidation):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, common.ErrorAlreadyExists):
		return status.Error(codes.AlreadyExists, "already exists")
	default:
		return status.Error(codes.Internal, "internal error")
	}
}
