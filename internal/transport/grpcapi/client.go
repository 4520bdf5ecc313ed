package grpcapi

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/cory-johannsen/hexbeat/internal/game/engine"
	"github.com/cory-johannsen/hexbeat/internal/game/hexgrid"
	"github.com/cory-johannsen/hexbeat/internal/game/team"
)

// Client calls hexbeat.v1.Command.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps a connection.
func NewClient(cc grpc.ClientConnInterface) *Client {
	if cc == nil {
		panic("grpcapi.NewClient: conn must not be nil")
	}
	return &Client{cc: cc}
}

// IssueRally orders t's units to rally at at.
func (c *Client) IssueRally(ctx context.Context, t team.Team, at hexgrid.Coord, opts ...grpc.CallOption) error {
	req, err := structpb.NewStruct(map[string]any{
		"team": t.String(),
		"col":  at.Col,
		"row":  at.Row,
	})
	if err != nil {
		return fmt.Errorf("grpcapi.IssueRally: %w", err)
	}
	out := new(structpb.Struct)
	return c.cc.Invoke(ctx, issueRallyMethod, req, out, opts...)
}

// Snapshot fetches the engine state.
func (c *Client) Snapshot(ctx context.Context, opts ...grpc.CallOption) (engine.Snapshot, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, snapshotMethod, &structpb.Struct{}, out, opts...); err != nil {
		return engine.Snapshot{}, err
	}
	var snap engine.Snapshot
	if err := fromStruct(out, &snap); err != nil {
		return engine.Snapshot{}, err
	}
	return snap, nil
}
