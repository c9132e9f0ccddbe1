package transport

import (
	"context"

	"google.golang.org/grpc"

	"github.com/relaxlab/qexp/pkg/types"
)

// ServiceName is the fully-qualified gRPC service name.
const ServiceName = "qexp.v1.ResultService"

// SendResultMethod is the full method name of the SendResult RPC.
const SendResultMethod = "/" + ServiceName + "/SendResult"

// ResultServiceServer is implemented by the server-side receiver.
type ResultServiceServer interface {
	SendResult(context.Context, *types.FitSnapshot) (*types.SendResponse, error)
}

// RegisterResultServiceServer registers srv with s.
func RegisterResultServiceServer(s grpc.ServiceRegistrar, srv ResultServiceServer) {
	s.RegisterService(&resultServiceDesc, srv)
}

var resultServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ResultServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "SendResult", Handler: sendResultHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "qexp/v1/result",
}

func sendResultHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(types.FitSnapshot)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ResultServiceServer).SendResult(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: SendResultMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ResultServiceServer).SendResult(ctx, req.(*types.FitSnapshot))
	}
	return interceptor(ctx, in, info, handler)
}

// ResultServiceClient is the agent-side stub.
type ResultServiceClient interface {
	SendResult(ctx context.Context, in *types.FitSnapshot, opts ...grpc.CallOption) (*types.SendResponse, error)
}

type resultServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewResultServiceClient returns a client that encodes every call as JSON.
func NewResultServiceClient(cc grpc.ClientConnInterface) ResultServiceClient {
	return &resultServiceClient{cc: cc}
}

func (c *resultServiceClient) SendResult(ctx context.Context, in *types.FitSnapshot, opts ...grpc.CallOption) (*types.SendResponse, error) {
	out := new(types.SendResponse)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := c.cc.Invoke(ctx, SendResultMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
