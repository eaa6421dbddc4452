package v1

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	// ManifestServiceName is the fully qualified service name.
	ManifestServiceName = "updatemanifest.v1.ManifestService"

	// ManifestServiceGetManifestFullMethodName is the full RPC name of GetManifest.
	ManifestServiceGetManifestFullMethodName = "/" + ManifestServiceName + "/GetManifest"
)

// ManifestServiceClient is the client API for ManifestService.
type ManifestServiceClient interface {
	GetManifest(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error)
}

// manifestServiceClient invokes ManifestService over a client connection.
type manifestServiceClient struct {
	// cc is the underlying client connection.
	cc grpc.ClientConnInterface
}

// NewManifestServiceClient returns a client bound to cc.
//
//nolint:ireturn // Mirrors generated gRPC constructors.
func NewManifestServiceClient(cc grpc.ClientConnInterface) ManifestServiceClient {
	return &manifestServiceClient{cc: cc}
}

// GetManifest fetches the current manifest.
func (c *manifestServiceClient) GetManifest(
	ctx context.Context,
	in *emptypb.Empty,
	opts ...grpc.CallOption,
) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, ManifestServiceGetManifestFullMethodName, in, out, opts...); err != nil {
		return nil, err
	}

	return out, nil
}

// ManifestServiceServer is the server API for ManifestService.
type ManifestServiceServer interface {
	GetManifest(ctx context.Context, in *emptypb.Empty) (*structpb.Struct, error)
}

// RegisterManifestServiceServer registers srv with the gRPC server.
func RegisterManifestServiceServer(s grpc.ServiceRegistrar, srv ManifestServiceServer) {
	s.RegisterService(&ManifestServiceDesc, srv)
}

// ManifestServiceDesc is the grpc.ServiceDesc for ManifestService.
//
//nolint:gochecknoglobals // Service descriptors are package-level by gRPC convention.
var ManifestServiceDesc = grpc.ServiceDesc{
	ServiceName: ManifestServiceName,
	HandlerType: (*ManifestServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "GetManifest",
			Handler:    getManifestHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "updatemanifest/v1/manifest.proto",
}

// getManifestHandler decodes the request and dispatches it through the interceptor chain.
func getManifestHandler(
	srv any,
	ctx context.Context, //nolint:revive // Signature is dictated by grpc.MethodDesc.
	dec func(any) error,
	interceptor grpc.UnaryServerInterceptor,
) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}

	if interceptor == nil {
		return srv.(ManifestServiceServer).GetManifest(ctx, in)
	}

	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: ManifestServiceGetManifestFullMethodName,
	}

	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ManifestServiceServer).GetManifest(ctx, req.(*emptypb.Empty))
	}

	return interceptor(ctx, in, info, handler)
}
