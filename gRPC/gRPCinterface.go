package proto

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"

	iface "LaserRange/interface"
	"LaserRange/logger"
	"LaserRange/monitor"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	RangeService_GetStatus_FullMethodName = "/laserrange.RangeService/GetStatus"
	RangeService_Shutdown_FullMethodName  = "/laserrange.RangeService/Shutdown"
)

// RangeServiceServer uses only well-known message types, so no generated
// stubs are needed on either side.
type RangeServiceServer interface {
	GetStatus(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	Shutdown(context.Context, *emptypb.Empty) (*emptypb.Empty, error)
}

func _RangeService_GetStatus_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RangeServiceServer).GetStatus(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: RangeService_GetStatus_FullMethodName}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(RangeServiceServer).GetStatus(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func _RangeService_Shutdown_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RangeServiceServer).Shutdown(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: RangeService_Shutdown_FullMethodName}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(RangeServiceServer).Shutdown(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

var RangeService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: "laserrange.RangeService",
	HandlerType: (*RangeServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetStatus", Handler: _RangeService_GetStatus_Handler},
		{MethodName: "Shutdown", Handler: _RangeService_Shutdown_Handler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "laserrange.proto",
}

func RegisterRangeServiceServer(s grpc.ServiceRegistrar, srv RangeServiceServer) {
	s.RegisterService(&RangeService_ServiceDesc, srv)
}

type RangeServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewRangeServiceClient(cc grpc.ClientConnInterface) *RangeServiceClient {
	return &RangeServiceClient{cc: cc}
}

func (c *RangeServiceClient) GetStatus(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, RangeService_GetStatus_FullMethodName, &emptypb.Empty{}, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *RangeServiceClient) Shutdown(ctx context.Context, opts ...grpc.CallOption) error {
	return c.cc.Invoke(ctx, RangeService_Shutdown_FullMethodName, &emptypb.Empty{}, new(emptypb.Empty), opts...)
}

// Server answers status queries from the frame loop's snapshot and turns
// Shutdown into a cancellation of the loop context.
type Server struct {
	provider iface.StatusProvider
	cancel   context.CancelFunc
	once     sync.Once
}

func NewServer(provider iface.StatusProvider, cancel context.CancelFunc) *Server {
	return &Server{provider: provider, cancel: cancel}
}

func (s *Server) GetStatus(ctx context.Context, req *emptypb.Empty) (*structpb.Struct, error) {
	monitor.GRPCTotal.Inc()
	st, err := StatusToStruct(s.provider.Status())
	if err != nil {
		logger.Log().Error("status conversion failed", zap.Error(err))
		return nil, status.Error(codes.Internal, err.Error())
	}
	return st, nil
}

func (s *Server) Shutdown(ctx context.Context, req *emptypb.Empty) (*emptypb.Empty, error) {
	monitor.GRPCTotal.Inc()
	s.once.Do(func() {
		logger.Log().Warn("shutdown requested over gRPC")
		s.cancel()
	})
	return &emptypb.Empty{}, nil
}

// StatusToStruct converts a snapshot using its JSON field names.
func StatusToStruct(st iface.Status) (*structpb.Struct, error) {
	raw, err := json.Marshal(st)
	if err != nil {
		return nil, err
	}
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return structpb.NewStruct(m)
}

// Serve registers srv on a new gRPC server bound to lis and serves in the
// background.
func Serve(lis net.Listener, srv *Server) *grpc.Server {
	s := grpc.NewServer()
	RegisterRangeServiceServer(s, srv)
	go func() {
		logger.Log().Info("gRPC server listening", zap.String("addr", lis.Addr().String()))
		if err := s.Serve(lis); err != nil {
			logger.Log().Error("gRPC server stopped", zap.Error(err))
		}
	}()
	return s
}

func StartGRPCServer(port int, srv *Server) (*grpc.Server, error) {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, fmt.Errorf("listen on port %d: %w", port, err)
	}
	return Serve(lis, srv), nil
}
