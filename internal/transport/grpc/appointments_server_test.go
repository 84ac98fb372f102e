package grpc

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"slices"
	"testing"
	"time"

	grpc "google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"garagebook/internal/apperr"
	"garagebook/internal/auth"
	"garagebook/internal/domain"
	"garagebook/internal/scheduling"
	"garagebook/internal/service/appointments"
	"garagebook/internal/store/memory"
)

type fakeAppointmentsService struct {
	listSlotsFn func(ctx context.Context, q appointments.SlotQuery) ([]time.Time, error)
	createFn    func(ctx context.Context, in appointments.CreateInput) (appointments.CreateResult, error)
	modifyFn    func(ctx context.Context, in appointments.ModifyInput) (domain.Appointment, error)
	deleteFn    func(ctx context.Context, appointmentID int64, credential string) error
	getFn       func(ctx context.Context, appointmentID int64, credential string) (domain.AppointmentDetails, error)
}

func (f *fakeAppointmentsService) ListSlots(ctx context.Context, q appointments.SlotQuery) ([]time.Time, error) {
	if f.listSlotsFn == nil {
		panic("ListSlots not configured")
	}
	return f.listSlotsFn(ctx, q)
}

func (f *fakeAppointmentsService) Create(ctx context.Context, in appointments.CreateInput) (appointments.CreateResult, error) {
	if f.createFn == nil {
		panic("Create not configured")
	}
	return f.createFn(ctx, in)
}

func (f *fakeAppointmentsService) Modify(ctx context.Context, in appointments.ModifyInput) (domain.Appointment, error) {
	if f.modifyFn == nil {
		panic("Modify not configured")
	}
	return f.modifyFn(ctx, in)
}

func (f *fakeAppointmentsService) Delete(ctx context.Context, appointmentID int64, credential string) error {
	if f.deleteFn == nil {
		panic("Delete not configured")
	}
	return f.deleteFn(ctx, appointmentID, credential)
}

func (f *fakeAppointmentsService) Get(ctx context.Context, appointmentID int64, credential string) (domain.AppointmentDetails, error) {
	if f.getFn == nil {
		panic("Get not configured")
	}
	return f.getFn(ctx, appointmentID, credential)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCreateAppointment_RejectsNilRequest(t *testing.T) {
	srv := NewAppointmentsServer(&fakeAppointmentsService{}, discardLogger(), time.UTC)

	_, err := srv.CreateAppointment(context.Background(), nil)
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("code = %s, want %s", status.Code(err), codes.InvalidArgument)
	}
}

func TestCreateAppointment_PassesCredentialFromMetadata(t *testing.T) {
	var got appointments.CreateInput
	srv := NewAppointmentsServer(&fakeAppointmentsService{
		createFn: func(ctx context.Context, in appointments.CreateInput) (appointments.CreateResult, error) {
			got = in
			return appointments.CreateResult{
				Appointment: domain.Appointment{ID: 9, ScheduledTime: time.Date(2026, 6, 2, 10, 0, 0, 0, time.UTC)},
				Customer:    domain.Customer{Tokens: 4},
			}, nil
		},
	}, discardLogger(), time.UTC)

	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs("authorization", "  Basic abc  "))
	resp, err := srv.CreateAppointment(ctx, &CreateAppointmentRequest{CustomerID: 1, WorkshopID: 2, ServiceID: 3, ScheduledTime: "2026-06-02 10:00"})
	if err != nil {
		t.Fatalf("CreateAppointment error: %v", err)
	}
	if got.Credential != "Basic abc" || got.WorkshopID != 2 || got.ScheduledTime != "2026-06-02 10:00" {
		t.Fatalf("service input = %+v", got)
	}
	if resp.Appointment.ScheduledTime != "2026-06-02 10:00" || resp.Tokens != 4 {
		t.Fatalf("response = %+v", resp)
	}
}

func TestStatusError_MapsKinds(t *testing.T) {
	cases := []struct {
		err  error
		want codes.Code
	}{
		{err: apperr.Validation("bad"), want: codes.InvalidArgument},
		{err: apperr.Conflict("taken"), want: codes.FailedPrecondition},
		{err: apperr.NotFound("gone"), want: codes.NotFound},
		{err: apperr.Unauthorized(), want: codes.Unauthenticated},
		{err: apperr.Dependency(errors.New("dial tcp: refused"), "load"), want: codes.Internal},
		{err: errors.New("unclassified"), want: codes.Internal},
	}
	for _, tc := range cases {
		srv := NewAppointmentsServer(&fakeAppointmentsService{
			deleteFn: func(ctx context.Context, appointmentID int64, credential string) error {
				return tc.err
			},
		}, discardLogger(), time.UTC)

		_, err := srv.DeleteAppointment(context.Background(), &DeleteAppointmentRequest{AppointmentID: 1})
		if status.Code(err) != tc.want {
			t.Fatalf("%v: code = %s, want %s", tc.err, status.Code(err), tc.want)
		}
		if tc.want == codes.Internal && status.Convert(err).Message() != "internal error" {
			t.Fatalf("internal cause leaked: %q", status.Convert(err).Message())
		}
	}
}

type bufconnEnv struct {
	client    *Client
	aliceAuth string
	bobAuth   string
	workshop  int64
	service   int64
}

func startBufconn(t *testing.T) bufconnEnv {
	t.Helper()
	st := memory.New()
	w := st.AddWorkshop(domain.Workshop{Name: "North Garage"})
	svc := st.AddService(domain.Service{Name: "Brake Check", Duration: 60}, w.ID)
	st.AddTechnician(domain.Technician{WorkshopID: w.ID, Name: "Ada"})
	hash, err := auth.HashPassword("secret", 4)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	for _, email := range []string{"alice@example.com", "bob@example.com"} {
		if _, err := st.AddCustomer(domain.Customer{Email: email, PasswordHash: hash}); err != nil {
			t.Fatalf("AddCustomer: %v", err)
		}
	}

	now := time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)
	appts := appointments.NewService(st, auth.NewGuard(st),
		appointments.WithGenerator(scheduling.Generator{Window: scheduling.DefaultWindow, Location: time.UTC}),
		appointments.WithClock(func() time.Time { return now }),
	)

	lis := bufconn.Listen(1 << 20)
	server := grpc.NewServer(grpc.ChainUnaryInterceptor(
		UnaryServerRequestIDInterceptor(),
		UnaryServerLoggingInterceptor(discardLogger()),
		UnaryServerTimeoutInterceptor(5*time.Second),
	))
	RegisterAppointmentsServer(server, NewAppointmentsServer(appts, discardLogger(), time.UTC))
	go func() { _ = server.Serve(lis) }()
	t.Cleanup(server.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	return bufconnEnv{
		client:    NewClient(conn),
		aliceAuth: auth.EncodeBasic("alice@example.com", "secret"),
		bobAuth:   auth.EncodeBasic("bob@example.com", "secret"),
		workshop:  w.ID,
		service:   svc.ID,
	}
}

func withAuth(ctx context.Context, credential string) context.Context {
	return metadata.AppendToOutgoingContext(ctx, "authorization", credential)
}

func TestBufconn_AppointmentLifecycle(t *testing.T) {
	env := startBufconn(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var header metadata.MD
	created, err := env.client.CreateAppointment(withAuth(ctx, env.aliceAuth), &CreateAppointmentRequest{
		WorkshopID:    env.workshop,
		ServiceID:     env.service,
		ScheduledTime: "2026-06-02 10:00",
		PaymentMethod: "Cash",
	}, grpc.Header(&header))
	if err != nil {
		t.Fatalf("CreateAppointment error: %v", err)
	}
	if created.Appointment.EndTime != "2026-06-02 11:00" || created.Tokens != 1 {
		t.Fatalf("created = %+v", created)
	}
	if len(header.Get(RequestIDMetadataKey)) != 1 {
		t.Fatalf("missing request id header: %v", header)
	}

	slots, err := env.client.ListSlots(ctx, &ListSlotsRequest{Date: "2026-06-02", WorkshopID: env.workshop, ServiceID: env.service})
	if err != nil {
		t.Fatalf("ListSlots error: %v", err)
	}
	if slices.Contains(slots.Slots, "2026-06-02 10:00") || !slices.Contains(slots.Slots, "2026-06-02 11:00") {
		t.Fatalf("slots = %v", slots.Slots)
	}

	_, err = env.client.CreateAppointment(withAuth(ctx, env.bobAuth), &CreateAppointmentRequest{
		WorkshopID:    env.workshop,
		ServiceID:     env.service,
		ScheduledTime: "2026-06-02 10:30",
	})
	if status.Code(err) != codes.FailedPrecondition {
		t.Fatalf("overlap code = %s, want %s", status.Code(err), codes.FailedPrecondition)
	}

	id := created.Appointment.ID
	modified, err := env.client.ModifyAppointment(withAuth(ctx, env.aliceAuth), &ModifyAppointmentRequest{
		AppointmentID: id,
		ScheduledTime: "2026-06-02 10:00",
		PaymentMethod: "ApplePay",
	})
	if err != nil || modified.Appointment.PaymentMethod != "ApplePay" {
		t.Fatalf("ModifyAppointment = %+v, %v", modified, err)
	}

	details, err := env.client.GetAppointment(withAuth(ctx, env.aliceAuth), &GetAppointmentRequest{AppointmentID: id})
	if err != nil || details.ServiceName != "Brake Check" || details.TechnicianName != "Ada" {
		t.Fatalf("GetAppointment = %+v, %v", details, err)
	}

	_, err = env.client.DeleteAppointment(withAuth(ctx, env.bobAuth), &DeleteAppointmentRequest{AppointmentID: id})
	if status.Code(err) != codes.Unauthenticated {
		t.Fatalf("foreign delete code = %s, want %s", status.Code(err), codes.Unauthenticated)
	}
	if _, err := env.client.DeleteAppointment(withAuth(ctx, env.aliceAuth), &DeleteAppointmentRequest{AppointmentID: id}); err != nil {
		t.Fatalf("DeleteAppointment error: %v", err)
	}
	_, err = env.client.GetAppointment(withAuth(ctx, env.aliceAuth), &GetAppointmentRequest{AppointmentID: id})
	if status.Code(err) != codes.NotFound {
		t.Fatalf("get deleted code = %s, want %s", status.Code(err), codes.NotFound)
	}
}

func TestBufconn_RequestValidation(t *testing.T) {
	env := startBufconn(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := env.client.ListSlots(ctx, &ListSlotsRequest{Date: "tomorrow", WorkshopID: env.workshop, ServiceID: env.service})
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("bad date code = %s", status.Code(err))
	}

	_, err = env.client.CreateAppointment(ctx, &CreateAppointmentRequest{
		WorkshopID:    env.workshop,
		ServiceID:     env.service,
		ScheduledTime: "2026-06-02 10:00",
	})
	if status.Code(err) != codes.Unauthenticated {
		t.Fatalf("missing credential code = %s", status.Code(err))
	}

	_, err = env.client.CreateAppointment(withAuth(ctx, env.aliceAuth), &CreateAppointmentRequest{
		WorkshopID:    env.workshop,
		ServiceID:     env.service,
		ScheduledTime: "2026-05-31 10:00",
	})
	if status.Code(err) != codes.FailedPrecondition {
		t.Fatalf("past time code = %s", status.Code(err))
	}
}

func TestUnaryServerTimeoutInterceptor_AddsDeadline(t *testing.T) {
	interceptor := UnaryServerTimeoutInterceptor(time.Second)
	var hadDeadline bool
	_, err := interceptor(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: "/x/y"}, func(ctx context.Context, req any) (any, error) {
		_, hadDeadline = ctx.Deadline()
		return nil, nil
	})
	if err != nil || !hadDeadline {
		t.Fatalf("deadline applied = %v, err = %v", hadDeadline, err)
	}
}
