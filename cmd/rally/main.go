// Package main sends a rally order to a running beat server and prints the
// resulting rally markers.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/cory-johannsen/hexbeat/internal/game/hexgrid"
	"github.com/cory-johannsen/hexbeat/internal/game/team"
	"github.com/cory-johannsen/hexbeat/internal/transport/grpcapi"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:50051", "beat server gRPC address")
	teamName := flag.String("team", "player", "team to order")
	col := flag.Int("col", -1, "rally column")
	row := flag.Int("row", -1, "rally row")
	timeout := flag.Duration("timeout", 5*time.Second, "call timeout")
	flag.Parse()

	t, err := team.Parse(*teamName)
	if err != nil {
		log.Fatalf("rally: %v", err)
	}
	conn, err := grpc.NewClient(*addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		log.Fatalf("rally: connecting to %s: %v", *addr, err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	if err := rally(ctx, grpcapi.NewClient(conn), t, hexgrid.Coord{Col: *col, Row: *row}, os.Stdout); err != nil {
		log.Fatalf("rally: %v", err)
	}
}

func rally(ctx context.Context, client *grpcapi.Client, t team.Team, at hexgrid.Coord, out io.Writer) error {
	if err := client.IssueRally(ctx, t, at); err != nil {
		return fmt.Errorf("issuing rally: %w", err)
	}
	snap, err := client.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("fetching snapshot: %w", err)
	}
	fmt.Fprintf(out, "beat %d: %s rallying at %s (%d units)\n", snap.Beat, t, at, snap.CountUnits(t))
	for _, r := range snap.Rallies {
		fmt.Fprintf(out, "  %s -> %s\n", r.Team, r.At)
	}
	return nil
}
