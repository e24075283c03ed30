package request

import (
	"context"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
)

// UnaryServerInterceptor opens an ambient scope around each unary call.
func UnaryServerInterceptor(opts ...ContextOption) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		state := NewState(opts...)
		state.Apply(StateFromGRPC(ctx)...)
		return handler(Scope(ctx, state), req)
	}
}

// StreamServerInterceptor is the streaming counterpart of UnaryServerInterceptor.
func StreamServerInterceptor(opts ...ContextOption) grpc.StreamServerInterceptor {
	return func(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		state := NewState(opts...)
		state.Apply(StateFromGRPC(ss.Context())...)
		wrapped := &wrappedServerStream{
			ServerStream: ss,
			ctx:          Scope(ss.Context(), state),
		}
		return handler(srv, wrapped)
	}
}

// StateFromGRPC extracts identity options from incoming metadata and the peer.
func StateFromGRPC(ctx context.Context) []ContextOption {
	reqID := ""
	var opts []ContextOption
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		reqID = first(md, MetadataRequestID)
		if platform := first(md, MetadataPlatform); platform != "" {
			opts = append(opts, WithPlatform(platform))
		}
		if traceID := first(md, "traceid"); traceID != "" {
			opts = append(opts, WithTraceID(traceID))
		}
	}
	if reqID == "" {
		reqID = uuid.NewString()
	}
	opts = append(opts, WithRequestID(reqID))
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		opts = append(opts, WithClientIP(p.Addr.String()))
	}
	return opts
}

func first(md metadata.MD, key string) string {
	if values := md.Get(key); len(values) > 0 {
		return values[0]
	}
	return ""
}

type wrappedServerStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (w *wrappedServerStream) Context() context.Context {
	return w.ctx
}
