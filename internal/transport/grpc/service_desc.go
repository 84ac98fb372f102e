package grpc

import (
	"context"

	grpc "google.golang.org/grpc"
)

const serviceName = "garagebook.v1.Appointments"

type Appointment struct {
	ID                int64  `json:"id"`
	CustomerID        int64  `json:"customer_id"`
	WorkshopID        int64  `json:"workshop_id"`
	ServiceID         int64  `json:"service_id"`
	TechnicianID      int64  `json:"technician_id"`
	ScheduledTime     string `json:"scheduled_time"`
	EndTime           string `json:"end_time"`
	CreatedAt         string `json:"created_at"`
	ModifiedAt        string `json:"modified_at"`
	AppointmentStatus string `json:"appointment_status"`
	PaymentMethod     string `json:"payment_method"`
	PaymentStatus     string `json:"payment_status"`
}

type ListSlotsRequest struct {
	// Date is yyyy-MM-dd or a full yyyy-MM-dd HH:mm time.
	Date       string `json:"date"`
	WorkshopID int64  `json:"workshop_id"`
	ServiceID  int64  `json:"service_id"`
}

type ListSlotsResponse struct {
	Slots []string `json:"slots"`
}

type CreateAppointmentRequest struct {
	CustomerID    int64  `json:"customer_id"`
	WorkshopID    int64  `json:"workshop_id"`
	ServiceID     int64  `json:"service_id"`
	ScheduledTime string `json:"scheduled_time"`
	PaymentMethod string `json:"payment_method"`
}

type CreateAppointmentResponse struct {
	Appointment Appointment `json:"appointment"`
	Tokens      int         `json:"tokens"`
}

type ModifyAppointmentRequest struct {
	AppointmentID int64  `json:"appointment_id"`
	ScheduledTime string `json:"scheduled_time"`
	PaymentMethod string `json:"payment_method"`
}

type ModifyAppointmentResponse struct {
	Appointment Appointment `json:"appointment"`
}

type DeleteAppointmentRequest struct {
	AppointmentID int64 `json:"appointment_id"`
}

type DeleteAppointmentResponse struct{}

type GetAppointmentRequest struct {
	AppointmentID int64 `json:"appointment_id"`
}

type GetAppointmentResponse struct {
	Appointment     Appointment `json:"appointment"`
	WorkshopName    string      `json:"workshop_name"`
	ServiceName     string      `json:"service_name"`
	ServiceDuration int         `json:"service_duration"`
	TechnicianName  string      `json:"technician_name"`
}

// AppointmentsAPI is the server side of garagebook.v1.Appointments.
type AppointmentsAPI interface {
	ListSlots(ctx context.Context, req *ListSlotsRequest) (*ListSlotsResponse, error)
	CreateAppointment(ctx context.Context, req *CreateAppointmentRequest) (*CreateAppointmentResponse, error)
	ModifyAppointment(ctx context.Context, req *ModifyAppointmentRequest) (*ModifyAppointmentResponse, error)
	DeleteAppointment(ctx context.Context, req *DeleteAppointmentRequest) (*DeleteAppointmentResponse, error)
	GetAppointment(ctx context.Context, req *GetAppointmentRequest) (*GetAppointmentResponse, error)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*AppointmentsAPI)(nil),
	Methods: []grpc.MethodDesc{
		unary("ListSlots", AppointmentsAPI.ListSlots),
		unary("CreateAppointment", AppointmentsAPI.CreateAppointment),
		unary("ModifyAppointment", AppointmentsAPI.ModifyAppointment),
		unary("DeleteAppointment", AppointmentsAPI.DeleteAppointment),
		unary("GetAppointment", AppointmentsAPI.GetAppointment),
	},
	Metadata: "garagebook/v1/appointments",
}

func RegisterAppointmentsServer(s grpc.ServiceRegistrar, srv AppointmentsAPI) {
	s.RegisterService(&serviceDesc, srv)
}

func unary[Req, Resp any](method string, call func(AppointmentsAPI, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	fullMethod := "/" + serviceName + "/" + method
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(AppointmentsAPI), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(AppointmentsAPI), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// Client calls garagebook.v1.Appointments with the JSON codec.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(codecName)}, opts...)
	if err := cc.Invoke(ctx, "/"+serviceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ListSlots(ctx context.Context, in *ListSlotsRequest, opts ...grpc.CallOption) (*ListSlotsResponse, error) {
	return invoke[ListSlotsResponse](ctx, c.cc, "ListSlots", in, opts)
}

func (c *Client) CreateAppointment(ctx context.Context, in *CreateAppointmentRequest, opts ...grpc.CallOption) (*CreateAppointmentResponse, error) {
	return invoke[CreateAppointmentResponse](ctx, c.cc, "CreateAppointment", in, opts)
}

func (c *Client) ModifyAppointment(ctx context.Context, in *ModifyAppointmentRequest, opts ...grpc.CallOption) (*ModifyAppointmentResponse, error) {
	return invoke[ModifyAppointmentResponse](ctx, c.cc, "ModifyAppointment", in, opts)
}

func (c *Client) DeleteAppointment(ctx context.Context, in *DeleteAppointmentRequest, opts ...grpc.CallOption) (*DeleteAppointmentResponse, error) {
	return invoke[DeleteAppointmentResponse](ctx, c.cc, "DeleteAppointment", in, opts)
}

func (c *Client) GetAppointment(ctx context.Context, in *GetAppointmentRequest, opts ...grpc.CallOption) (*GetAppointmentResponse, error) {
	return invoke[GetAppointmentResponse](ctx, c.cc, "GetAppointment", in, opts)
}
