// Package grpcserver exposes image analysis over gRPC. The service is declared
// by hand on top of protobuf well-known types, so no generated code is needed:
//
//	service Analyzer {
//	  rpc Analyze(google.protobuf.BytesValue) returns (google.protobuf.Struct);
//	}
package grpcserver

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "cancercheck.v1.Analyzer"

const analyzeMethod = "/" + ServiceName + "/Analyze"

// AnalyzerServer is the server API for the Analyzer service.
type AnalyzerServer interface {
	Analyze(ctx context.Context, in *wrapperspb.BytesValue) (*structpb.Struct, error)
}

// RegisterAnalyzerServer registers srv on s.
func RegisterAnalyzerServer(s grpc.ServiceRegistrar, srv AnalyzerServer) {
	s.RegisterService(&analyzerServiceDesc, srv)
}

var analyzerServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AnalyzerServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Analyze", Handler: analyzeHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "cancercheck/v1/analyzer.proto",
}

func analyzeHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.BytesValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AnalyzerServer).Analyze(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: analyzeMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(AnalyzerServer).Analyze(ctx, req.(*wrapperspb.BytesValue))
	}
	return interceptor(ctx, in, info, handler)
}

// AnalyzerClient calls the Analyzer service.
type AnalyzerClient struct {
	cc grpc.ClientConnInterface
}

// NewAnalyzerClient wraps a client connection.
func NewAnalyzerClient(cc grpc.ClientConnInterface) *AnalyzerClient {
	return &AnalyzerClient{cc: cc}
}

// Analyze sends image bytes and returns the analysis document.
func (c *AnalyzerClient) Analyze(ctx context.Context, image []byte, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, analyzeMethod, wrapperspb.Bytes(image), out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
