package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/order-intake/internal/common"
	"github.com/joseph-ayodele/order-intake/internal/entity"
	"github.com/joseph-ayodele/order-intake/internal/services/intake"
)

// ServiceName is the fully-qualified gRPC service name, also used for health status.
const ServiceName = "orders.v1.OrderIntake"

// Intake is the part of the intake service exposed over the network.
type Intake interface {
	Ingest(ctx context.Context, req intake.IngestRequest) (*intake.IngestResult, error)
	SubmitText(ctx context.Context, req intake.TextRequest) (*intake.IngestResult, error)
	SubmitImage(ctx context.Context, req intake.ImageRequest) (*intake.IngestResult, error)
	Batches(ctx context.Context) ([]entity.Batch, error)
	LoadBatch(ctx context.Context, batchID string) ([]entity.PersistedRow, error)
	AggregateBatch(ctx context.Context, batchID string) ([]entity.OrderLine, []entity.AggregationRow, error)
	Stats(ctx context.Context) (*entity.BatchStats, error)
}

// OrderIntakeServer is the server API for the OrderIntake service. Messages are
// google.protobuf.Struct documents carrying the same JSON shapes as the HTTP API.
type OrderIntakeServer interface {
	ListBatches(context.Context, *structpb.Struct) (*structpb.Struct, error)
	LoadBatch(context.Context, *structpb.Struct) (*structpb.Struct, error)
	AggregateBatch(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Stats(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SubmitText(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

func unaryHandler(method string, call func(OrderIntakeServer, context.Context, *structpb.Struct) (*structpb.Struct, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(OrderIntakeServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + method}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(OrderIntakeServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// OrderIntake_ServiceDesc is the grpc.ServiceDesc for the OrderIntake service.
var OrderIntake_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*OrderIntakeServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ListBatches", Handler: unaryHandler("ListBatches", OrderIntakeServer.ListBatches)},
		{MethodName: "LoadBatch", Handler: unaryHandler("LoadBatch", OrderIntakeServer.LoadBatch)},
		{MethodName: "AggregateBatch", Handler: unaryHandler("AggregateBatch", OrderIntakeServer.AggregateBatch)},
		{MethodName: "Stats", Handler: unaryHandler("Stats", OrderIntakeServer.Stats)},
		{MethodName: "SubmitText", Handler: unaryHandler("SubmitText", OrderIntakeServer.SubmitText)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "orders/v1/intake.proto",
}

func RegisterOrderIntakeServer(s grpc.ServiceRegistrar, srv OrderIntakeServer) {
	s.RegisterService(&OrderIntake_ServiceDesc, srv)
}

// OrderService implements OrderIntakeServer on top of the intake service.
type OrderService struct {
	svc    Intake
	logger *slog.Logger
}

func NewOrderService(svc Intake, logger *slog.Logger) *OrderService {
	if logger == nil {
		logger = slog.Default()
	}
	return &OrderService{svc: svc, logger: logger}
}

func (s *OrderService) ListBatches(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	batches, err := s.svc.Batches(ctx)
	if err != nil {
		s.logger.Error("grpc.list_batches.failed", "error", err)
		return nil, common.ToStatus(err)
	}
	if batches == nil {
		batches = []entity.Batch{}
	}
	return toStruct(map[string]any{"batches": batches})
}

func (s *OrderService) LoadBatch(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := batchIDOf(req)
	if err != nil {
		return nil, err
	}
	rows, err := s.svc.LoadBatch(ctx, id)
	if err != nil {
		s.logger.Error("grpc.load_batch.failed", "batch_id", id, "error", err)
		return nil, common.ToStatus(err)
	}
	return toStruct(map[string]any{"batch_id": id, "rows": rows})
}

func (s *OrderService) AggregateBatch(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := batchIDOf(req)
	if err != nil {
		return nil, err
	}
	lines, summary, err := s.svc.AggregateBatch(ctx, id)
	if err != nil {
		s.logger.Error("grpc.aggregate_batch.failed", "batch_id", id, "error", err)
		return nil, common.ToStatus(err)
	}
	return toStruct(map[string]any{"batch_id": id, "lines": lines, "summary": summary})
}

func (s *OrderService) Stats(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	stats, err := s.svc.Stats(ctx)
	if err != nil {
		s.logger.Error("grpc.stats.failed", "error", err)
		return nil, common.ToStatus(err)
	}
	return toStruct(stats)
}

func (s *OrderService) SubmitText(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in textRequest
	if err := fromStruct(req, &in); err != nil {
		return nil, common.InvalidArgumentErrorf("decode request: %v", err)
	}
	res, err := s.svc.SubmitText(ctx, in.toIntake())
	if err != nil {
		s.logger.Error("grpc.submit_text.failed", "error", err)
		return nil, common.ToStatus(err)
	}
	return toStruct(newResultView(res))
}

func batchIDOf(req *structpb.Struct) (string, error) {
	id := strings.TrimSpace(req.GetFields()["batch_id"].GetStringValue())
	if id == "" {
		return "", common.InvalidArgumentError("batch_id is required")
	}
	return id, nil
}

// toStruct converts any JSON-encodable value into a Struct.
func toStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, common.InternalErrorf("encode response: %v", err)
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(raw, out); err != nil {
		return nil, common.InternalErrorf("encode response: %v", err)
	}
	return out, nil
}

// fromStruct decodes a Struct into v through its JSON form.
func fromStruct(s *structpb.Struct, v any) error {
	if s == nil {
		return nil
	}
	raw, err := protojson.Marshal(s)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}

// OrderIntakeClient calls a remote OrderIntake service.
type OrderIntakeClient struct {
	cc grpc.ClientConnInterface
}

func NewOrderIntakeClient(cc grpc.ClientConnInterface) *OrderIntakeClient {
	return &OrderIntakeClient{cc: cc}
}

func (c *OrderIntakeClient) invoke(ctx context.Context, method string, in map[string]any, out any, opts ...grpc.CallOption) error {
	req, err := structpb.NewStruct(in)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, req, resp, opts...); err != nil {
		return err
	}
	if err := fromStruct(resp, out); err != nil {
		return fmt.Errorf("decode %s response: %w", method, err)
	}
	return nil
}

// BatchRows is a stored batch as returned by LoadBatch.
type BatchRows struct {
	BatchID string                `json:"batch_id"`
	Rows    []entity.PersistedRow `json:"rows"`
}

// BatchAggregate is a reloaded batch with its aggregation table.
type BatchAggregate struct {
	BatchID string                  `json:"batch_id"`
	Lines   []entity.OrderLine      `json:"lines"`
	Summary []entity.AggregationRow `json:"summary"`
}

func (c *OrderIntakeClient) ListBatches(ctx context.Context, opts ...grpc.CallOption) ([]entity.Batch, error) {
	var out struct {
		Batches []entity.Batch `json:"batches"`
	}
	if err := c.invoke(ctx, "ListBatches", map[string]any{}, &out, opts...); err != nil {
		return nil, err
	}
	return out.Batches, nil
}

func (c *OrderIntakeClient) LoadBatch(ctx context.Context, batchID string, opts ...grpc.CallOption) (*BatchRows, error) {
	out := &BatchRows{}
	if err := c.invoke(ctx, "LoadBatch", map[string]any{"batch_id": batchID}, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *OrderIntakeClient) AggregateBatch(ctx context.Context, batchID string, opts ...grpc.CallOption) (*BatchAggregate, error) {
	out := &BatchAggregate{}
	if err := c.invoke(ctx, "AggregateBatch", map[string]any{"batch_id": batchID}, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *OrderIntakeClient) Stats(ctx context.Context, opts ...grpc.CallOption) (*entity.BatchStats, error) {
	out := &entity.BatchStats{}
	if err := c.invoke(ctx, "Stats", map[string]any{}, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// SubmitText sends a free-text order and returns the decoded result view.
func (c *OrderIntakeClient) SubmitText(ctx context.Context, customer, message, referenceDate string, opts ...grpc.CallOption) (*ResultView, error) {
	out := &ResultView{}
	in := map[string]any{"customer_name": customer, "message": message, "reference_date": referenceDate}
	if err := c.invoke(ctx, "SubmitText", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
