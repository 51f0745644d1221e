package grpc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/dmehra2102/order-engine/internal/notification/application"
	pb "github.com/dmehra2102/order-engine/internal/notification/infrastructure/grpc/proto"
)

type Server struct {
	pb.UnimplementedNotificationServiceServer
	log     *slog.Logger
	service *application.Service
}

func NewServer(log *slog.Logger, service *application.Service) *Server {
	return &Server{log: log, service: service}
}

func (s *Server) NotifyOrderCreated(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	orderID, err := intField(req, pb.FieldOrderID)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	clientID, _ := intField(req, pb.FieldClientID)

	res, err := s.service.OrderCreated(ctx, application.OrderCreated{
		OrderID:     orderID,
		ClientID:    clientID,
		ClientName:  stringField(req, pb.FieldClientName),
		Status:      stringField(req, pb.FieldStatus),
		TotalAmount: stringField(req, pb.FieldTotalAmount),
		Message:     stringField(req, pb.FieldMessage),
	})
	if err != nil {
		return nil, toStatus(err)
	}
	return reply(res), nil
}

func (s *Server) NotifyOrderStatusChanged(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	orderID, err := intField(req, pb.FieldOrderID)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	clientID, _ := intField(req, pb.FieldClientID)

	res, err := s.service.StatusChanged(ctx, application.StatusChanged{
		OrderID:    orderID,
		ClientID:   clientID,
		ClientName: stringField(req, pb.FieldClientName),
		OldStatus:  stringField(req, pb.FieldOldStatus),
		NewStatus:  stringField(req, pb.FieldNewStatus),
		Message:    stringField(req, pb.FieldMessage),
	})
	if err != nil {
		return nil, toStatus(err)
	}
	return reply(res), nil
}

// NewGRPCServer builds a server with tracing and health checks registered.
func NewGRPCServer(srv *Server) *grpc.Server {
	gs := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	pb.RegisterNotificationServiceServer(gs, srv)

	hs := health.NewServer()
	hs.SetServingStatus(pb.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(gs, hs)
	return gs
}

func Run(addr string, srv *Server) (*grpc.Server, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	gs := NewGRPCServer(srv)
	go func() {
		if err := gs.Serve(lis); err != nil {
			srv.log.Error("grpc server stopped", "err", err)
		}
	}()
	srv.log.Info("grpc listening", "addr", lis.Addr().String())
	return gs, nil
}

func reply(res application.Result) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		pb.FieldSuccess: structpb.NewBoolValue(res.Success),
		pb.FieldMessage: structpb.NewStringValue(res.Message),
	}}
}

func toStatus(err error) error {
	if errors.Is(err, application.ErrInvalidNotification) {
		return status.Error(codes.InvalidArgument, err.Error())
	}
	return status.Error(codes.Internal, err.Error())
}

func intField(s *structpb.Struct, key string) (int64, error) {
	v, ok := s.GetFields()[key]
	if !ok {
		return 0, fmt.Errorf("%s is required", key)
	}
	n, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return 0, fmt.Errorf("%s must be a number", key)
	}
	if n.NumberValue != math.Trunc(n.NumberValue) {
		return 0, fmt.Errorf("%s must be an integer", key)
	}
	return int64(n.NumberValue), nil
}

func stringField(s *structpb.Struct, key string) string {
	return s.GetFields()[key].GetStringValue()
}
