package grpc

import (
	"context"

	"github.com/dmitrijs2005/workflow/internal/common"
	"github.com/dmitrijs2005/workflow/internal/server/auth"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	TokenServiceName = "workflow.auth.v1.TokenService"
	IntrospectMethod = "/" + TokenServiceName + "/Introspect"
)

// TokenServiceServer resolves the caller's bearer token to its principal.
type TokenServiceServer interface {
	Introspect(context.Context, *emptypb.Empty) (*structpb.Struct, error)
}

// TokenServiceDesc describes the service using well-known message types,
// so no generated code is needed on either side.
var TokenServiceDesc = grpc.ServiceDesc{
	ServiceName: TokenServiceName,
	HandlerType: (*TokenServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Introspect", Handler: introspectHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "workflow/auth/v1/token.proto",
}

func introspectHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(TokenServiceServer).Introspect(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: IntrospectMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(TokenServiceServer).Introspect(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

// Introspect returns the principal the interceptor resolved.
func (s *GRPCServer) Introspect(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	p, ok := auth.PrincipalFromContext(ctx)
	if !ok {
		return nil, statusFromError(common.ErrorUnauthorized)
	}

	out, err := structpb.NewStruct(map[string]any{
		"subject_id": p.SubjectID,
		"email":      p.Email,
		"role":       p.Role,
		"store":      s.store.State().String(),
	})
	if err != nil {
		s.logger.Error(ctx, "introspect encode failed", "error", err)
		return nil, statusFromError(err)
	}
	return out, nil
}

// Introspect calls the token service on cc with the given bearer token.
func Introspect(ctx context.Context, cc grpc.ClientConnInterface, token string) (*structpb.Struct, error) {
	ctx = withBearer(ctx, token)
	out := new(structpb.Struct)
	if err := cc.Invoke(ctx, IntrospectMethod, &emptypb.Empty{}, out); err != nil {
		return nil, err
	}
	return out, nil
}
