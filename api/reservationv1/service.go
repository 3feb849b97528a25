package reservationv1

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const ServiceName = "omnipos.reservation.v1.ReservationService"

const (
	ReservationService_ReserveStock_FullMethodName          = "/" + ServiceName + "/ReserveStock"
	ReservationService_CancelReservation_FullMethodName     = "/" + ServiceName + "/CancelReservation"
	ReservationService_FulfillReservation_FullMethodName    = "/" + ServiceName + "/FulfillReservation"
	ReservationService_GetAvailability_FullMethodName       = "/" + ServiceName + "/GetAvailability"
	ReservationService_GetReservation_FullMethodName        = "/" + ServiceName + "/GetReservation"
	ReservationService_ListReservations_FullMethodName      = "/" + ServiceName + "/ListReservations"
	ReservationService_CreateInventoryRecord_FullMethodName = "/" + ServiceName + "/CreateInventoryRecord"
	ReservationService_AdjustStock_FullMethodName           = "/" + ServiceName + "/AdjustStock"
	ReservationService_ListMovements_FullMethodName         = "/" + ServiceName + "/ListMovements"
)

type ReservationServiceServer interface {
	ReserveStock(context.Context, *ReserveStockRequest) (*ReserveStockResponse, error)
	CancelReservation(context.Context, *CancelReservationRequest) (*CancelReservationResponse, error)
	FulfillReservation(context.Context, *FulfillReservationRequest) (*FulfillReservationResponse, error)
	GetAvailability(context.Context, *GetAvailabilityRequest) (*Availability, error)
	GetReservation(context.Context, *GetReservationRequest) (*Reservation, error)
	ListReservations(context.Context, *ListReservationsRequest) (*ListReservationsResponse, error)
	CreateInventoryRecord(context.Context, *CreateInventoryRecordRequest) (*InventoryRecord, error)
	AdjustStock(context.Context, *AdjustStockRequest) (*AdjustStockResponse, error)
	ListMovements(context.Context, *ListMovementsRequest) (*ListMovementsResponse, error)
}

// UnimplementedReservationServiceServer can be embedded for forward compatibility.
type UnimplementedReservationServiceServer struct{}

func (UnimplementedReservationServiceServer) ReserveStock(context.Context, *ReserveStockRequest) (*ReserveStockResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method ReserveStock not implemented")
}
func (UnimplementedReservationServiceServer) CancelReservation(context.Context, *CancelReservationRequest) (*CancelReservationResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method CancelReservation not implemented")
}
func (UnimplementedReservationServiceServer) FulfillReservation(context.Context, *FulfillReservationRequest) (*FulfillReservationResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method FulfillReservation not implemented")
}
func (UnimplementedReservationServiceServer) GetAvailability(context.Context, *GetAvailabilityRequest) (*Availability, error) {
	return nil, status.Error(codes.Unimplemented, "method GetAvailability not implemented")
}
func (UnimplementedReservationServiceServer) GetReservation(context.Context, *GetReservationRequest) (*Reservation, error) {
	return nil, status.Error(codes.Unimplemented, "method GetReservation not implemented")
}
func (UnimplementedReservationServiceServer) ListReservations(context.Context, *ListReservationsRequest) (*ListReservationsResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method ListReservations not implemented")
}
func (UnimplementedReservationServiceServer) CreateInventoryRecord(context.Context, *CreateInventoryRecordRequest) (*InventoryRecord, error) {
	return nil, status.Error(codes.Unimplemented, "method CreateInventoryRecord not implemented")
}
func (UnimplementedReservationServiceServer) AdjustStock(context.Context, *AdjustStockRequest) (*AdjustStockResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method AdjustStock not implemented")
}
func (UnimplementedReservationServiceServer) ListMovements(context.Context, *ListMovementsRequest) (*ListMovementsResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method ListMovements not implemented")
}

func RegisterReservationServiceServer(s grpc.ServiceRegistrar, srv ReservationServiceServer) {
	s.RegisterService(&ReservationService_ServiceDesc, srv)
}

type unaryHandler = func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error)

func handle[Req, Resp any](fullMethod string, call func(ReservationServiceServer, context.Context, *Req) (*Resp, error)) unaryHandler {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(ReservationServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(ReservationServiceServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var ReservationService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ReservationServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ReserveStock", Handler: handle(ReservationService_ReserveStock_FullMethodName, ReservationServiceServer.ReserveStock)},
		{MethodName: "CancelReservation", Handler: handle(ReservationService_CancelReservation_FullMethodName, ReservationServiceServer.CancelReservation)},
		{MethodName: "FulfillReservation", Handler: handle(ReservationService_FulfillReservation_FullMethodName, ReservationServiceServer.FulfillReservation)},
		{MethodName: "GetAvailability", Handler: handle(ReservationService_GetAvailability_FullMethodName, ReservationServiceServer.GetAvailability)},
		{MethodName: "GetReservation", Handler: handle(ReservationService_GetReservation_FullMethodName, ReservationServiceServer.GetReservation)},
		{MethodName: "ListReservations", Handler: handle(ReservationService_ListReservations_FullMethodName, ReservationServiceServer.ListReservations)},
		{MethodName: "CreateInventoryRecord", Handler: handle(ReservationService_CreateInventoryRecord_FullMethodName, ReservationServiceServer.CreateInventoryRecord)},
		{MethodName: "AdjustStock", Handler: handle(ReservationService_AdjustStock_FullMethodName, ReservationServiceServer.AdjustStock)},
		{MethodName: "ListMovements", Handler: handle(ReservationService_ListMovements_FullMethodName, ReservationServiceServer.ListMovements)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "omnipos/reservation/v1/reservation.json",
}

type ReservationServiceClient interface {
	ReserveStock(ctx context.Context, in *ReserveStockRequest, opts ...grpc.CallOption) (*ReserveStockResponse, error)
	CancelReservation(ctx context.Context, in *CancelReservationRequest, opts ...grpc.CallOption) (*CancelReservationResponse, error)
	FulfillReservation(ctx context.Context, in *FulfillReservationRequest, opts ...grpc.CallOption) (*FulfillReservationResponse, error)
	GetAvailability(ctx context.Context, in *GetAvailabilityRequest, opts ...grpc.CallOption) (*Availability, error)
	GetReservation(ctx context.Context, in *GetReservationRequest, opts ...grpc.CallOption) (*Reservation, error)
	ListReservations(ctx context.Context, in *ListReservationsRequest, opts ...grpc.CallOption) (*ListReservationsResponse, error)
	CreateInventoryRecord(ctx context.Context, in *CreateInventoryRecordRequest, opts ...grpc.CallOption) (*InventoryRecord, error)
	AdjustStock(ctx context.Context, in *AdjustStockRequest, opts ...grpc.CallOption) (*AdjustStockResponse, error)
	ListMovements(ctx context.Context, in *ListMovementsRequest, opts ...grpc.CallOption) (*ListMovementsResponse, error)
}

type reservationServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewReservationServiceClient(cc grpc.ClientConnInterface) ReservationServiceClient {
	return &reservationServiceClient{cc: cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in interface{}, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *reservationServiceClient) ReserveStock(ctx context.Context, in *ReserveStockRequest, opts ...grpc.CallOption) (*ReserveStockResponse, error) {
	return invoke[ReserveStockResponse](ctx, c.cc, ReservationService_ReserveStock_FullMethodName, in, opts)
}

func (c *reservationServiceClient) CancelReservation(ctx context.Context, in *CancelReservationRequest, opts ...grpc.CallOption) (*CancelReservationResponse, error) {
	return invoke[CancelReservationResponse](ctx, c.cc, ReservationService_CancelReservation_FullMethodName, in, opts)
}

func (c *reservationServiceClient) FulfillReservation(ctx context.Context, in *FulfillReservationRequest, opts ...grpc.CallOption) (*FulfillReservationResponse, error) {
	return invoke[FulfillReservationResponse](ctx, c.cc, ReservationService_FulfillReservation_FullMethodName, in, opts)
}

func (c *reservationServiceClient) GetAvailability(ctx context.Context, in *GetAvailabilityRequest, opts ...grpc.CallOption) (*Availability, error) {
	return invoke[Availability](ctx, c.cc, ReservationService_GetAvailability_FullMethodName, in, opts)
}

func (c *reservationServiceClient) GetReservation(ctx context.Context, in *GetReservationRequest, opts ...grpc.CallOption) (*Reservation, error) {
	return invoke[Reservation](ctx, c.cc, ReservationService_GetReservation_FullMethodName, in, opts)
}

func (c *reservationServiceClient) ListReservations(ctx context.Context, in *ListReservationsRequest, opts ...grpc.CallOption) (*ListReservationsResponse, error) {
	return invoke[ListReservationsResponse](ctx, c.cc, ReservationService_ListReservations_FullMethodName, in, opts)
}

func (c *reservationServiceClient) CreateInventoryRecord(ctx context.Context, in *CreateInventoryRecordRequest, opts ...grpc.CallOption) (*InventoryRecord, error) {
	return invoke[InventoryRecord](ctx, c.cc, ReservationService_CreateInventoryRecord_FullMethodName, in, opts)
}

func (c *reservationServiceClient) AdjustStock(ctx context.Context, in *AdjustStockRequest, opts ...grpc.CallOption) (*AdjustStockResponse, error) {
	return invoke[AdjustStockResponse](ctx, c.cc, ReservationService_AdjustStock_FullMethodName, in, opts)
}

func (c *reservationServiceClient) ListMovements(ctx context.Context, in *ListMovementsRequest, opts ...grpc.CallOption) (*ListMovementsResponse, error) {
	return invoke[ListMovementsResponse](ctx, c.cc, ReservationService_ListMovements_FullMethodName, in, opts)
}
