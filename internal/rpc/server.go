// Package rpc serves the result store over gRPC. Messages are protobuf
// well-known types, so the service needs no generated code: runs travel
// as structpb.Struct with the same field names as the HTTP API.
package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/banshee-data/mttbar/internal/db"
	"github.com/banshee-data/mttbar/internal/monitoring"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "mttbar.v1.Results"

// Full method names.
const (
	ListRunsMethod  = "/" + ServiceName + "/ListRuns"
	GetRunMethod    = "/" + ServiceName + "/GetRun"
	GetMassesMethod = "/" + ServiceName + "/GetMasses"
)

// Store is the part of the result store the service reads.
type Store interface {
	Runs(ctx context.Context) ([]db.Run, error)
	GetRun(ctx context.Context, runID string) (db.Run, error)
	MttbarValues(ctx context.Context, runID string) ([]float64, error)
}

type resultsServer interface {
	ListRuns(ctx context.Context, in *emptypb.Empty) (*structpb.ListValue, error)
	GetRun(ctx context.Context, in *wrapperspb.StringValue) (*structpb.Struct, error)
	GetMasses(ctx context.Context, in *wrapperspb.StringValue) (*structpb.ListValue, error)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*resultsServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("ListRuns", ListRunsMethod, resultsServer.ListRuns),
		unary("GetRun", GetRunMethod, resultsServer.GetRun),
		unary("GetMasses", GetMassesMethod, resultsServer.GetMasses),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "mttbar/v1/results.proto",
}

// unary adapts a typed method to a grpc.MethodDesc, the way protoc-gen-go-grpc
// output does.
func unary[Req, Resp any](name, fullMethod string, call func(resultsServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(resultsServer), ctx, req.(*Req))
			}
			if interceptor == nil {
				return handler(ctx, in)
			}
			return interceptor(ctx, in, &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}, handler)
		},
	}
}

// Server implements the results service over a Store.
type Server struct {
	store Store
}

// NewServer returns a results service backed by store.
func NewServer(store Store) *Server {
	return &Server{store: store}
}

// Register adds srv to s.
func Register(s *grpc.Server, srv *Server) {
	s.RegisterService(&serviceDesc, srv)
}

// NewGRPCServer builds a gRPC server carrying the results service, the
// standard health service and server reflection.
func NewGRPCServer(store Store) *grpc.Server {
	s := grpc.NewServer(grpc.UnaryInterceptor(logCalls))
	Register(s, NewServer(store))

	hs := health.NewServer()
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(s, hs)

	reflection.Register(s)
	return s
}

func logCalls(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	if err != nil {
		monitoring.Logf("grpc %s failed after %s: %v", info.FullMethod, time.Since(start), err)
	} else {
		monitoring.Logf("grpc %s in %s", info.FullMethod, time.Since(start))
	}
	return resp, err
}

// ListRuns returns every stored run, newest first.
func (s *Server) ListRuns(ctx context.Context, _ *emptypb.Empty) (*structpb.ListValue, error) {
	runs, err := s.store.Runs(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	out := &structpb.ListValue{Values: make([]*structpb.Value, 0, len(runs))}
	for _, r := range runs {
		st, err := runStruct(r)
		if err != nil {
			return nil, toStatus(err)
		}
		out.Values = append(out.Values, structpb.NewStructValue(st))
	}
	return out, nil
}

// GetRun returns one stored run.
func (s *Server) GetRun(ctx context.Context, in *wrapperspb.StringValue) (*structpb.Struct, error) {
	if in.GetValue() == "" {
		return nil, status.Error(codes.InvalidArgument, "run id is required")
	}
	r, err := s.store.GetRun(ctx, in.GetValue())
	if err != nil {
		return nil, toStatus(err)
	}
	st, err := runStruct(r)
	if err != nil {
		return nil, toStatus(err)
	}
	return st, nil
}

// GetMasses returns the reconstructed m_ttbar values of a stored run.
func (s *Server) GetMasses(ctx context.Context, in *wrapperspb.StringValue) (*structpb.ListValue, error) {
	if in.GetValue() == "" {
		return nil, status.Error(codes.InvalidArgument, "run id is required")
	}
	if _, err := s.store.GetRun(ctx, in.GetValue()); err != nil {
		return nil, toStatus(err)
	}
	masses, err := s.store.MttbarValues(ctx, in.GetValue())
	if err != nil {
		return nil, toStatus(err)
	}
	out := &structpb.ListValue{Values: make([]*structpb.Value, len(masses))}
	for i, m := range masses {
		out.Values[i] = structpb.NewNumberValue(m)
	}
	return out, nil
}

func toStatus(err error) error {
	switch {
	case errors.Is(err, db.ErrRunNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	}
	return status.Error(codes.Internal, err.Error())
}

func runStruct(r db.Run) (*structpb.Struct, error) {
	b, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return structpb.NewStruct(m)
}
