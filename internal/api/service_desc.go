package api

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	// ServiceName is the fully-qualified gRPC service name.
	ServiceName = "attrition.v1.AttritionPredictor"
	// PredictFullMethodName is the gRPC method path for Predict.
	PredictFullMethodName = "/attrition.v1.AttritionPredictor/Predict"
	// ErrorDomain tags ErrorInfo details attached to prediction failures.
	ErrorDomain = "attrition.v1"
)

// PredictorServer is the server API for the AttritionPredictor service. Requests
// carry the employee record as a Struct; responses carry the prediction fields.
type PredictorServer interface {
	Predict(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// UnimplementedPredictorServer can be embedded to satisfy PredictorServer.
type UnimplementedPredictorServer struct{}

// Predict returns Unimplemented.
func (UnimplementedPredictorServer) Predict(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method Predict not implemented")
}

// RegisterPredictorServer attaches srv to a gRPC registrar.
func RegisterPredictorServer(s grpc.ServiceRegistrar, srv PredictorServer) {
	s.RegisterService(&PredictorServiceDesc, srv)
}

func predictHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PredictorServer).Predict(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: PredictFullMethodName,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(PredictorServer).Predict(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// PredictorServiceDesc is the grpc.ServiceDesc for the AttritionPredictor service.
var PredictorServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*PredictorServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Predict",
			Handler:    predictHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "attrition/v1/predictor.proto",
}

// PredictorClient is the client API for the AttritionPredictor service.
type PredictorClient interface {
	Predict(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
}

type predictorClient struct {
	cc grpc.ClientConnInterface
}

// NewPredictorClient wraps a client connection.
func NewPredictorClient(cc grpc.ClientConnInterface) PredictorClient {
	return &predictorClient{cc: cc}
}

func (c *predictorClient) Predict(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, PredictFullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
