package api

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "flagkeeper.targeting.v1.TargetingAPI"

// Method names of the TargetingAPI service.
const (
	MethodLoad            = "Load"
	MethodSubmit          = "Submit"
	MethodRequestApproval = "RequestApproval"
	MethodApprove         = "Approve"
	MethodDecline         = "Decline"
	MethodCheck           = "Check"
	MethodDiff            = "Diff"
	MethodGetPreference   = "GetPreference"
	MethodSetPreference   = "SetPreference"
	MethodGetSegment      = "GetSegment"
)

// FullMethod returns the /service/method path of a method.
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// TargetingAPIServer is the server side of the TargetingAPI service.
type TargetingAPIServer interface {
	Load(context.Context, *LoadRequest) (*LoadResponse, error)
	Submit(context.Context, *SubmitRequest) (*AckResponse, error)
	RequestApproval(context.Context, *RequestApprovalRequest) (*AckResponse, error)
	Approve(context.Context, *ResolveApprovalRequest) (*AckResponse, error)
	Decline(context.Context, *ResolveApprovalRequest) (*Empty, error)
	Check(context.Context, *CheckRequest) (*CheckResponse, error)
	Diff(context.Context, *DiffRequest) (*DiffResponse, error)
	GetPreference(context.Context, *PreferenceRequest) (*PreferenceResponse, error)
	SetPreference(context.Context, *PreferenceRequest) (*Empty, error)
	GetSegment(context.Context, *SegmentRequest) (*SegmentResponse, error)
}

// ServiceDesc describes the TargetingAPI service for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*TargetingAPIServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(MethodLoad, TargetingAPIServer.Load),
		unary(MethodSubmit, TargetingAPIServer.Submit),
		unary(MethodRequestApproval, TargetingAPIServer.RequestApproval),
		unary(MethodApprove, TargetingAPIServer.Approve),
		unary(MethodDecline, TargetingAPIServer.Decline),
		unary(MethodCheck, TargetingAPIServer.Check),
		unary(MethodDiff, TargetingAPIServer.Diff),
		unary(MethodGetPreference, TargetingAPIServer.GetPreference),
		unary(MethodSetPreference, TargetingAPIServer.SetPreference),
		unary(MethodGetSegment, TargetingAPIServer.GetSegment),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "flagkeeper/targeting/v1",
}

// RegisterTargetingAPIServer registers srv on s.
func RegisterTargetingAPIServer(s grpc.ServiceRegistrar, srv TargetingAPIServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// unary builds the method descriptor for one request/response method.
func unary[Req, Resp any](name string, call func(TargetingAPIServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, status.Error(codes.InvalidArgument, err.Error())
			}
			if interceptor == nil {
				return call(srv.(TargetingAPIServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(name)}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(TargetingAPIServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// UnimplementedTargetingAPIServer answers every method with UNIMPLEMENTED.
// Embed it to implement a subset of the service.
type UnimplementedTargetingAPIServer struct{}

func (UnimplementedTargetingAPIServer) Load(context.Context, *LoadRequest) (*LoadResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Load not implemented")
}
func (UnimplementedTargetingAPIServer) Submit(context.Context, *SubmitRequest) (*AckResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Submit not implemented")
}
func (UnimplementedTargetingAPIServer) RequestApproval(context.Context, *RequestApprovalRequest) (*AckResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method RequestApproval not implemented")
}
func (UnimplementedTargetingAPIServer) Approve(context.Context, *ResolveApprovalRequest) (*AckResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Approve not implemented")
}
func (UnimplementedTargetingAPIServer) Decline(context.Context, *ResolveApprovalRequest) (*Empty, error) {
	return nil, status.Error(codes.Unimplemented, "method Decline not implemented")
}
func (UnimplementedTargetingAPIServer) Check(context.Context, *CheckRequest) (*CheckResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Check not implemented")
}
func (UnimplementedTargetingAPIServer) Diff(context.Context, *DiffRequest) (*DiffResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Diff not implemented")
}
func (UnimplementedTargetingAPIServer) GetPreference(context.Context, *PreferenceRequest) (*PreferenceResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method GetPreference not implemented")
}
func (UnimplementedTargetingAPIServer) SetPreference(context.Context, *PreferenceRequest) (*Empty, error) {
	return nil, status.Error(codes.Unimplemented, "method SetPreference not implemented")
}
func (UnimplementedTargetingAPIServer) GetSegment(context.Context, *SegmentRequest) (*SegmentResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method GetSegment not implemented")
}
