package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const QueueServiceName = "paymentevents.QueueService"

// QueueServiceServer exposes the booking queue to internal callers. Requests and
// responses are schemaless structs carrying the same fields as the HTTP API.
type QueueServiceServer interface {
	Enqueue(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Dequeue(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Stats(context.Context, *structpb.Struct) (*structpb.Struct, error)
	VerifyPremium(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type queueMethod func(QueueServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

var QueueServiceDesc = grpc.ServiceDesc{
	ServiceName: QueueServiceName,
	HandlerType: (*QueueServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Enqueue", Handler: unaryHandler("Enqueue", QueueServiceServer.Enqueue)},
		{MethodName: "Dequeue", Handler: unaryHandler("Dequeue", QueueServiceServer.Dequeue)},
		{MethodName: "Stats", Handler: unaryHandler("Stats", QueueServiceServer.Stats)},
		{MethodName: "VerifyPremium", Handler: unaryHandler("VerifyPremium", QueueServiceServer.VerifyPremium)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "paymentevents/queue",
}

func RegisterQueueServiceServer(s grpc.ServiceRegistrar, srv QueueServiceServer) {
	s.RegisterService(&QueueServiceDesc, srv)
}

func unaryHandler(method string, call queueMethod) func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	fullMethod := "/" + QueueServiceName + "/" + method
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(QueueServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(QueueServiceServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}
