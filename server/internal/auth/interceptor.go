package auth

import (
	"context"
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// UnaryInterceptor enforces the guard on every unary call. Rejected calls
// fail with codes.Unauthenticated before the handler runs, so agents treat
// them as permanent and drop the snapshot.
func (g *Guard) UnaryInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		var got string
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if vals := md.Get(g.header); len(vals) > 0 {
				got = vals[0]
			}
		}
		if err := g.Check(info.FullMethod, got); err != nil {
			slog.Warn("auth: rejected grpc call", "method", info.FullMethod, "err", err)
			return nil, status.Error(codes.Unauthenticated, err.Error())
		}
		return handler(ctx, req)
	}
}
