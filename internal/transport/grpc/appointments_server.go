package grpc

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"garagebook/internal/apperr"
	"garagebook/internal/domain"
	"garagebook/internal/service/appointments"
)

type AppointmentsServer struct {
	svc appointmentsService
	log *slog.Logger
	loc *time.Location
}

var _ AppointmentsAPI = (*AppointmentsServer)(nil)

type appointmentsService interface {
	ListSlots(ctx context.Context, q appointments.SlotQuery) ([]time.Time, error)
	Create(ctx context.Context, in appointments.CreateInput) (appointments.CreateResult, error)
	Modify(ctx context.Context, in appointments.ModifyInput) (domain.Appointment, error)
	Delete(ctx context.Context, appointmentID int64, credential string) error
	Get(ctx context.Context, appointmentID int64, credential string) (domain.AppointmentDetails, error)
}

func NewAppointmentsServer(svc appointmentsService, log *slog.Logger, loc *time.Location) *AppointmentsServer {
	if log == nil {
		log = slog.Default()
	}
	if loc == nil {
		loc = time.Local
	}
	return &AppointmentsServer{
		svc: svc,
		log: log.With(slog.String("component", "grpc.appointments")),
		loc: loc,
	}
}

func (s *AppointmentsServer) ListSlots(ctx context.Context, req *ListSlotsRequest) (*ListSlotsResponse, error) {
	log := s.log.With(slog.String("rpc", "ListSlots"))
	if req == nil {
		log.Warn("invalid request", slog.String("reason", "nil_request"))
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}

	slots, err := s.svc.ListSlots(ctx, appointments.SlotQuery{
		Date:       req.Date,
		WorkshopID: req.WorkshopID,
		ServiceID:  req.ServiceID,
	})
	if err != nil {
		return nil, statusError(ctx, log, err)
	}
	out := make([]string, 0, len(slots))
	for _, t := range slots {
		out = append(out, s.wire(t))
	}
	return &ListSlotsResponse{Slots: out}, nil
}

func (s *AppointmentsServer) CreateAppointment(ctx context.Context, req *CreateAppointmentRequest) (*CreateAppointmentResponse, error) {
	log := s.log.With(slog.String("rpc", "CreateAppointment"))
	if req == nil {
		log.Warn("invalid request", slog.String("reason", "nil_request"))
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}

	res, err := s.svc.Create(ctx, appointments.CreateInput{
		CustomerID:    req.CustomerID,
		WorkshopID:    req.WorkshopID,
		ServiceID:     req.ServiceID,
		ScheduledTime: req.ScheduledTime,
		PaymentMethod: req.PaymentMethod,
		Credential:    credential(ctx),
	})
	if err != nil {
		return nil, statusError(ctx, log, err)
	}

	log.InfoContext(ctx, "appointment created",
		slog.Int64("appointment_id", res.Appointment.ID),
		slog.Int64("customer_id", res.Appointment.CustomerID),
		slog.String("scheduled_time", s.wire(res.Appointment.ScheduledTime)),
	)
	return &CreateAppointmentResponse{Appointment: s.toMessage(res.Appointment), Tokens: res.Customer.Tokens}, nil
}

func (s *AppointmentsServer) ModifyAppointment(ctx context.Context, req *ModifyAppointmentRequest) (*ModifyAppointmentResponse, error) {
	log := s.log.With(slog.String("rpc", "ModifyAppointment"))
	if req == nil {
		log.Warn("invalid request", slog.String("reason", "nil_request"))
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}

	appt, err := s.svc.Modify(ctx, appointments.ModifyInput{
		AppointmentID: req.AppointmentID,
		ScheduledTime: req.ScheduledTime,
		PaymentMethod: req.PaymentMethod,
		Credential:    credential(ctx),
	})
	if err != nil {
		return nil, statusError(ctx, log, err)
	}

	log.InfoContext(ctx, "appointment modified",
		slog.Int64("appointment_id", appt.ID),
		slog.String("scheduled_time", s.wire(appt.ScheduledTime)),
	)
	return &ModifyAppointmentResponse{Appointment: s.toMessage(appt)}, nil
}

func (s *AppointmentsServer) DeleteAppointment(ctx context.Context, req *DeleteAppointmentRequest) (*DeleteAppointmentResponse, error) {
	log := s.log.With(slog.String("rpc", "DeleteAppointment"))
	if req == nil {
		log.Warn("invalid request", slog.String("reason", "nil_request"))
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}

	if err := s.svc.Delete(ctx, req.AppointmentID, credential(ctx)); err != nil {
		return nil, statusError(ctx, log, err)
	}
	log.InfoContext(ctx, "appointment deleted", slog.Int64("appointment_id", req.AppointmentID))
	return &DeleteAppointmentResponse{}, nil
}

func (s *AppointmentsServer) GetAppointment(ctx context.Context, req *GetAppointmentRequest) (*GetAppointmentResponse, error) {
	log := s.log.With(slog.String("rpc", "GetAppointment"))
	if req == nil {
		log.Warn("invalid request", slog.String("reason", "nil_request"))
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}

	d, err := s.svc.Get(ctx, req.AppointmentID, credential(ctx))
	if err != nil {
		return nil, statusError(ctx, log, err)
	}
	return &GetAppointmentResponse{
		Appointment:     s.toMessage(d.Appointment),
		WorkshopName:    d.WorkshopName,
		ServiceName:     d.ServiceName,
		ServiceDuration: d.ServiceDuration,
		TechnicianName:  d.TechnicianName,
	}, nil
}

// credential reads the Basic credential from the authorization metadata.
func credential(ctx context.Context) string {
	return strings.TrimSpace(firstMetadata(ctx, "authorization"))
}

func codeFor(kind apperr.Kind) codes.Code {
	switch kind {
	case apperr.KindValidation:
		return codes.InvalidArgument
	case apperr.KindConflict:
		return codes.FailedPrecondition
	case apperr.KindNotFound:
		return codes.NotFound
	case apperr.KindUnauthorized:
		return codes.Unauthenticated
	default:
		return codes.Internal
	}
}

func statusError(ctx context.Context, log *slog.Logger, err error) error {
	kind := apperr.KindOf(err)
	attrs := []any{slog.String("request_id", RequestIDFromContext(ctx)), slog.String("kind", kind.String())}
	switch kind {
	case apperr.KindDependency:
		log.ErrorContext(ctx, "request failed", append(attrs, slog.Any("err", err))...)
	case apperr.KindUnauthorized:
		log.WarnContext(ctx, "request rejected", attrs...)
	default:
		log.InfoContext(ctx, "request rejected", append(attrs, slog.String("reason", apperr.ReasonOf(err)))...)
	}
	return status.Error(codeFor(kind), apperr.ReasonOf(err))
}

func (s *AppointmentsServer) wire(t time.Time) string {
	return domain.FormatWireTime(t.In(s.loc))
}

func (s *AppointmentsServer) toMessage(a domain.Appointment) Appointment {
	return Appointment{
		ID:                a.ID,
		CustomerID:        a.CustomerID,
		WorkshopID:        a.WorkshopID,
		ServiceID:         a.ServiceID,
		TechnicianID:      a.TechnicianID,
		ScheduledTime:     s.wire(a.ScheduledTime),
		EndTime:           s.wire(a.EndTime),
		CreatedAt:         s.wire(a.CreatedAt),
		ModifiedAt:        s.wire(a.ModifiedAt),
		AppointmentStatus: a.AppointmentStatus,
		PaymentMethod:     string(a.PaymentMethod),
		PaymentStatus:     a.PaymentStatus,
	}
}
