package grpc

import (
	"context"
	"errors"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/maidsofhonourafrica/escrow-service/internal/application"
	"github.com/maidsofhonourafrica/escrow-service/internal/domain"
	"github.com/maidsofhonourafrica/escrow-service/internal/ports"
)

const fullServiceName = "escrow.v1.EscrowInternalService"

// Roles allowed to settle escrows over the internal API.
var settlementRoles = map[string]bool{"admin": true, "service": true}

type EscrowInternalService interface {
	GetEscrow(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ReleaseEscrow(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RefundEscrow(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type EscrowInternalServer struct {
	service  *application.Service
	verifier ports.TokenVerifier
}

func NewEscrowInternalServer(service *application.Service, verifier ports.TokenVerifier) *EscrowInternalServer {
	return &EscrowInternalServer{service: service, verifier: verifier}
}

func Register(server grpc.ServiceRegistrar, svc EscrowInternalService) {
	server.RegisterService(&grpc.ServiceDesc{
		ServiceName: fullServiceName,
		HandlerType: (*EscrowInternalService)(nil),
		Methods: []grpc.MethodDesc{
			{MethodName: "GetEscrow", Handler: unaryHandler("GetEscrow", svc.GetEscrow)},
			{MethodName: "ReleaseEscrow", Handler: unaryHandler("ReleaseEscrow", svc.ReleaseEscrow)},
			{MethodName: "RefundEscrow", Handler: unaryHandler("RefundEscrow", svc.RefundEscrow)},
		},
		Streams:  []grpc.StreamDesc{},
		Metadata: "escrow/v1/escrow_internal.proto",
	}, svc)
}

func (s *EscrowInternalServer) GetEscrow(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if _, err := s.actor(ctx); err != nil {
		return nil, err
	}
	escrowID, err := requiredString(req, "escrow_id")
	if err != nil {
		return nil, err
	}
	escrow, err := s.service.GetEscrow(ctx, escrowID)
	if err != nil {
		return nil, toStatus(err)
	}
	return escrowStruct(escrow)
}

func (s *EscrowInternalServer) ReleaseEscrow(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	actor, err := s.actor(ctx)
	if err != nil {
		return nil, err
	}
	escrowID, err := requiredString(req, "escrow_id")
	if err != nil {
		return nil, err
	}
	escrow, err := s.service.ReleaseEscrow(ctx, actor, escrowID)
	if err != nil {
		return nil, toStatus(err)
	}
	return escrowStruct(escrow)
}

func (s *EscrowInternalServer) RefundEscrow(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	actor, err := s.actor(ctx)
	if err != nil {
		return nil, err
	}
	escrowID, err := requiredString(req, "escrow_id")
	if err != nil {
		return nil, err
	}
	reason, err := requiredString(req, "reason")
	if err != nil {
		return nil, err
	}
	escrow, err := s.service.RefundEscrow(ctx, actor, escrowID, reason)
	if err != nil {
		return nil, toStatus(err)
	}
	return escrowStruct(escrow)
}

// actor authenticates the caller from the authorization metadata entry.
func (s *EscrowInternalServer) actor(ctx context.Context) (application.Actor, error) {
	md, _ := metadata.FromIncomingContext(ctx)
	values := md.Get("authorization")
	if len(values) == 0 || !strings.HasPrefix(values[0], "Bearer ") {
		return application.Actor{}, status.Error(codes.Unauthenticated, "missing bearer token")
	}
	claims, err := s.verifier.Verify(strings.TrimSpace(strings.TrimPrefix(values[0], "Bearer ")))
	if err != nil {
		return application.Actor{}, status.Error(codes.Unauthenticated, "invalid token")
	}
	if !settlementRoles[strings.ToLower(claims.Role)] {
		return application.Actor{}, status.Error(codes.PermissionDenied, "role not allowed")
	}
	actor := application.Actor{SubjectID: claims.SubjectID, Role: claims.Role}
	if ids := md.Get("x-request-id"); len(ids) > 0 {
		actor.RequestID = ids[0]
	}
	return actor, nil
}

func requiredString(req *structpb.Struct, field string) (string, error) {
	v := strings.TrimSpace(req.GetFields()[field].GetStringValue())
	if v == "" {
		return "", status.Errorf(codes.InvalidArgument, "missing %s", field)
	}
	return v, nil
}

func toStatus(err error) error {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		return status.Error(codes.Unauthenticated, "unauthorized")
	case errors.Is(err, domain.ErrNotFound):
		return status.Error(codes.NotFound, "escrow not found")
	case errors.Is(err, domain.ErrInvalidEscrowState):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, domain.ErrConflict):
		return status.Error(codes.Aborted, "conflict")
	case errors.Is(err, domain.ErrGatewayUnavailable):
		return status.Error(codes.Unavailable, "payment gateway unavailable")
	case errors.Is(err, domain.ErrGatewayRejected):
		return status.Error(codes.FailedPrecondition, "payment gateway rejected the request")
	default:
		return status.Error(codes.Internal, "internal error")
	}
}

func escrowStruct(e domain.EscrowTransaction) (*structpb.Struct, error) {
	resp, err := structpb.NewStruct(map[string]any{
		"escrow_id":           e.EscrowID,
		"placement_id":        e.PlacementID,
		"client_id":           e.ClientID,
		"provider_id":         e.ProviderID,
		"status":              string(e.Status),
		"total_amount":        e.TotalAmount.StringFixed(2),
		"platform_commission": e.PlatformCommission.StringFixed(2),
		"sp_payout":           e.SPPayout.StringFixed(2),
		"balance":             e.Balance().StringFixed(2),
	})
	if err != nil {
		return nil, status.Errorf(codes.Internal, "build response: %v", err)
	}
	return resp, nil
}

type structMethod func(context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(method string, call structMethod) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		req := &structpb.Struct{}
		if err := dec(req); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(ctx, req)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: "/" + fullServiceName + "/" + method,
		}
		handler := func(ctx context.Context, req any) (any, error) {
			typed, ok := req.(*structpb.Struct)
			if !ok {
				return nil, status.Error(codes.InvalidArgument, "invalid request type")
			}
			return call(ctx, typed)
		}
		return interceptor(ctx, req, info, handler)
	}
}
