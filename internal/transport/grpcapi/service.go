// Package grpcapi exposes the engine's command surface over gRPC as the
// hexbeat.v1.Command service. Messages are google.protobuf.Struct values, so
// the service needs no generated code.
package grpcapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/cory-johannsen/hexbeat/internal/game/engine"
	"github.com/cory-johannsen/hexbeat/internal/game/hexgrid"
	"github.com/cory-johannsen/hexbeat/internal/game/team"
)

// ServiceName is the fully-qualified gRPC service name.
const ServiceName = "hexbeat.v1.Command"

const (
	issueRallyMethod = "/" + ServiceName + "/IssueRally"
	snapshotMethod   = "/" + ServiceName + "/Snapshot"
)

// CommandServer is the server API of hexbeat.v1.Command.
type CommandServer interface {
	// IssueRally takes {"team": string, "col": number, "row": number}.
	IssueRally(context.Context, *structpb.Struct) (*structpb.Struct, error)
	// Snapshot ignores its request and returns the engine snapshot as JSON.
	Snapshot(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// CommandServiceDesc describes hexbeat.v1.Command for grpc.Server.RegisterService.
var CommandServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*CommandServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "IssueRally", Handler: issueRallyHandler},
		{MethodName: "Snapshot", Handler: snapshotHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "hexbeat/v1/command.proto",
}

func issueRallyHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CommandServer).IssueRally(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: issueRallyMethod}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(CommandServer).IssueRally(ctx, req.(*structpb.Struct))
	})
}

func snapshotHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CommandServer).Snapshot(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: snapshotMethod}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(CommandServer).Snapshot(ctx, req.(*structpb.Struct))
	})
}

// Commander is the engine surface the service drives.
type Commander interface {
	IssueRally(t team.Team, at hexgrid.Coord) error
	Snapshot() engine.Snapshot
}

// Service implements CommandServer on top of a Commander.
type Service struct {
	engine Commander
	logger *zap.Logger
}

// NewService creates a Service.
//
// Precondition: eng and logger must be non-nil.
func NewService(eng Commander, logger *zap.Logger) *Service {
	if eng == nil {
		panic("grpcapi.NewService: engine must not be nil")
	}
	if logger == nil {
		panic("grpcapi.NewService: logger must not be nil")
	}
	return &Service{engine: eng, logger: logger}
}

// IssueRally implements CommandServer.
//
// Postcondition: Malformed requests and rejected orders return InvalidArgument.
func (s *Service) IssueRally(_ context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	f := req.GetFields()
	t, err := team.Parse(f["team"].GetStringValue())
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	col, okc := intField(f, "col")
	row, okr := intField(f, "row")
	if !okc || !okr {
		return nil, status.Error(codes.InvalidArgument, "col and row must be integers")
	}
	at := hexgrid.Coord{Col: col, Row: row}
	if err := s.engine.IssueRally(t, at); err != nil {
		if errors.Is(err, engine.ErrInvalidRally) {
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}
		return nil, status.Error(codes.Internal, err.Error())
	}
	s.logger.Info("rally accepted", zap.Stringer("team", t), zap.Stringer("at", at))
	return structpb.NewStruct(map[string]any{
		"team": t.String(),
		"col":  at.Col,
		"row":  at.Row,
	})
}

// Snapshot implements CommandServer.
func (s *Service) Snapshot(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	out, err := toStruct(s.engine.Snapshot())
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

func intField(f map[string]*structpb.Value, key string) (int, bool) {
	v, ok := f[key]
	if !ok {
		return 0, false
	}
	n, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok || n.NumberValue != float64(int(n.NumberValue)) {
		return 0, false
	}
	return int(n.NumberValue), true
}

// toStruct converts v to a Struct through its JSON form.
func toStruct(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("grpcapi: encoding %T: %w", v, err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("grpcapi: decoding %T: %w", v, err)
	}
	return structpb.NewStruct(m)
}

// fromStruct decodes s into v through its JSON form.
func fromStruct(s *structpb.Struct, v any) error {
	b, err := json.Marshal(s.AsMap())
	if err != nil {
		return fmt.Errorf("grpcapi: encoding struct: %w", err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("grpcapi: decoding %T: %w", v, err)
	}
	return nil
}
