package transport

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/relaxlab/qexp/pkg/types"
)

type echoServer struct {
	got []*types.FitSnapshot
}

func (e *echoServer) SendResult(_ context.Context, snap *types.FitSnapshot) (*types.SendResponse, error) {
	if snap.SourceID == "" {
		return nil, status.Error(codes.InvalidArgument, "source_id is required")
	}
	e.got = append(e.got, snap)
	return &types.SendResponse{Ok: true, Message: snap.Key()}, nil
}

func dial(t *testing.T, srv ResultServiceServer, opts ...grpc.ServerOption) ResultServiceClient {
	t.Helper()

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	gs := grpc.NewServer(opts...)
	RegisterResultServiceServer(gs, srv)
	go gs.Serve(lis) //nolint:errcheck
	t.Cleanup(gs.Stop)

	conn, err := grpc.NewClient(lis.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return NewResultServiceClient(conn)
}

func TestSendResult_RoundTrip(t *testing.T) {
	srv := &echoServer{}
	client := dial(t, srv)

	snap := &types.FitSnapshot{
		SourceID:            "fridge-a",
		SourceType:          "prometheus",
		Qubit:               3,
		State:               types.StateGood,
		DecayConstant:       52.5e-6,
		DecayConstantStderr: 1.1e-6,
	}
	resp, err := client.SendResult(context.Background(), snap)
	require.NoError(t, err)
	assert.True(t, resp.Ok)
	assert.Equal(t, "fridge-a/3", resp.Message)

	require.Len(t, srv.got, 1)
	assert.Equal(t, snap, srv.got[0])
}

func TestSendResult_StatusErrorsPropagate(t *testing.T) {
	client := dial(t, &echoServer{})

	_, err := client.SendResult(context.Background(), &types.FitSnapshot{})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestSendResult_InterceptorSeesMethodAndMessage(t *testing.T) {
	var method string
	var seen *types.FitSnapshot
	interceptor := func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		method = info.FullMethod
		seen, _ = req.(*types.FitSnapshot)
		return handler(ctx, req)
	}
	client := dial(t, &echoServer{}, grpc.UnaryInterceptor(interceptor))

	_, err := client.SendResult(context.Background(), &types.FitSnapshot{SourceID: "s", Qubit: 1})
	require.NoError(t, err)
	assert.Equal(t, SendResultMethod, method)
	require.NotNil(t, seen)
	assert.Equal(t, 1, seen.Qubit)
}
