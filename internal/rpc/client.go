package rpc

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/banshee-data/mttbar/internal/db"
)

// Client reads a remote result store.
type Client struct {
	conn *grpc.ClientConn
}

// Dial connects to target without transport security. opts are appended
// to the defaults.
func Dial(target string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", target, err)
	}
	return &Client{conn: conn}, nil
}

// Conn exposes the underlying connection, e.g. for a health client.
func (c *Client) Conn() *grpc.ClientConn { return c.conn }

func (c *Client) Close() error { return c.conn.Close() }

// ListRuns returns every run on the server, newest first.
func (c *Client) ListRuns(ctx context.Context) ([]db.Run, error) {
	out := new(structpb.ListValue)
	if err := c.conn.Invoke(ctx, ListRunsMethod, &emptypb.Empty{}, out); err != nil {
		return nil, err
	}
	runs := make([]db.Run, 0, len(out.GetValues()))
	for _, v := range out.GetValues() {
		r, err := fromStruct(v.GetStructValue())
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, nil
}

// GetRun returns one run.
func (c *Client) GetRun(ctx context.Context, runID string) (db.Run, error) {
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, GetRunMethod, wrapperspb.String(runID), out); err != nil {
		return db.Run{}, err
	}
	return fromStruct(out)
}

// GetMasses returns the reconstructed m_ttbar values of a run.
func (c *Client) GetMasses(ctx context.Context, runID string) ([]float64, error) {
	out := new(structpb.ListValue)
	if err := c.conn.Invoke(ctx, GetMassesMethod, wrapperspb.String(runID), out); err != nil {
		return nil, err
	}
	masses := make([]float64, len(out.GetValues()))
	for i, v := range out.GetValues() {
		masses[i] = v.GetNumberValue()
	}
	return masses, nil
}

func fromStruct(st *structpb.Struct) (db.Run, error) {
	var r db.Run
	b, err := json.Marshal(st.AsMap())
	if err != nil {
		return r, err
	}
	if err := json.Unmarshal(b, &r); err != nil {
		return r, fmt.Errorf("decode run: %w", err)
	}
	return r, nil
}
