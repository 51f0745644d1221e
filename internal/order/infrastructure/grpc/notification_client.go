package grpc

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	pb "github.com/dmehra2102/order-engine/internal/notification/infrastructure/grpc/proto"
	"github.com/dmehra2102/order-engine/internal/order/domain"
	"github.com/dmehra2102/order-engine/pkg/outbox"
)

// NotificationClient is an outbox sink that forwards order events to the
// notification service.
type NotificationClient struct {
	log *slog.Logger
	cc  pb.NotificationServiceClient
}

// Dial opens a lazy connection; nothing is sent until the first event.
func Dial(addr string) (*grpc.ClientConn, error) {
	return grpc.NewClient(addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithStatsHandler(otelgrpc.NewClientHandler()),
	)
}

func NewNotificationClient(log *slog.Logger, conn grpc.ClientConnInterface) *NotificationClient {
	return &NotificationClient{
		log: log,
		cc:  pb.NewNotificationServiceClient(conn),
	}
}

func (c *NotificationClient) Name() string { return "rpc:notification" }

func (c *NotificationClient) Deliver(ctx context.Context, event outbox.Event) error {
	req, err := toStruct(event.Payload)
	if err != nil {
		return fmt.Errorf("decode %s payload: %w", event.Type, err)
	}

	var resp *structpb.Struct
	switch event.Type {
	case domain.EventOrderCreated:
		resp, err = c.cc.NotifyOrderCreated(ctx, req)
	case domain.EventOrderStatusChanged:
		resp, err = c.cc.NotifyOrderStatusChanged(ctx, req)
	default:
		c.log.Debug("notification skipped", "type", event.Type, "event_id", event.ID)
		return nil
	}
	if err != nil {
		return err
	}

	fields := resp.GetFields()
	if !fields[pb.FieldSuccess].GetBoolValue() {
		return fmt.Errorf("notification rejected: %s", fields[pb.FieldMessage].GetStringValue())
	}
	return nil
}

func toStruct(payload []byte) (*structpb.Struct, error) {
	var fields map[string]any
	if err := json.Unmarshal(payload, &fields); err != nil {
		return nil, err
	}
	return structpb.NewStruct(fields)
}
