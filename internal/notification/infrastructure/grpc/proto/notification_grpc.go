// Package proto holds the notification service contract. Messages are
// google.protobuf.Struct values so no generated types are needed.
package proto

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const ServiceName = "notification.NotificationService"

const (
	NotifyOrderCreatedFullMethodName       = "/" + ServiceName + "/NotifyOrderCreated"
	NotifyOrderStatusChangedFullMethodName = "/" + ServiceName + "/NotifyOrderStatusChanged"
)

// Request and reply field names.
const (
	FieldOrderID     = "order_id"
	FieldClientID    = "client_id"
	FieldClientName  = "client_name"
	FieldStatus      = "status"
	FieldTotalAmount = "total_amount"
	FieldOldStatus   = "old_status"
	FieldNewStatus   = "new_status"
	FieldMessage     = "message"
	FieldSuccess     = "success"
)

type NotificationServiceClient interface {
	NotifyOrderCreated(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	NotifyOrderStatusChanged(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
}

type notificationServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewNotificationServiceClient(cc grpc.ClientConnInterface) NotificationServiceClient {
	return &notificationServiceClient{cc: cc}
}

func (c *notificationServiceClient) NotifyOrderCreated(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, NotifyOrderCreatedFullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *notificationServiceClient) NotifyOrderStatusChanged(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, NotifyOrderStatusChangedFullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

type NotificationServiceServer interface {
	NotifyOrderCreated(context.Context, *structpb.Struct) (*structpb.Struct, error)
	NotifyOrderStatusChanged(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// UnimplementedNotificationServiceServer can be embedded to keep servers compiling
// when methods are added.
type UnimplementedNotificationServiceServer struct{}

func (UnimplementedNotificationServiceServer) NotifyOrderCreated(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method NotifyOrderCreated not implemented")
}

func (UnimplementedNotificationServiceServer) NotifyOrderStatusChanged(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method NotifyOrderStatusChanged not implemented")
}

func RegisterNotificationServiceServer(s grpc.ServiceRegistrar, srv NotificationServiceServer) {
	s.RegisterService(&NotificationService_ServiceDesc, srv)
}

func notifyOrderCreatedHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(NotificationServiceServer).NotifyOrderCreated(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: NotifyOrderCreatedFullMethodName}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(NotificationServiceServer).NotifyOrderCreated(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func notifyOrderStatusChangedHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(NotificationServiceServer).NotifyOrderStatusChanged(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: NotifyOrderStatusChangedFullMethodName}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(NotificationServiceServer).NotifyOrderStatusChanged(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

var NotificationService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*NotificationServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "NotifyOrderCreated", Handler: notifyOrderCreatedHandler},
		{MethodName: "NotifyOrderStatusChanged", Handler: notifyOrderStatusChangedHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "notification.proto",
}
