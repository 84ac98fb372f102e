// Package rest is the gin HTTP surface. Every parameter travels in the query string and the
// credential in the Authorization header.
package rest

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"garagebook/internal/apperr"
	"garagebook/internal/domain"
	"garagebook/internal/service/appointments"
)

type AppointmentService interface {
	ListSlots(ctx context.Context, q appointments.SlotQuery) ([]time.Time, error)
	Create(ctx context.Context, in appointments.CreateInput) (appointments.CreateResult, error)
	Modify(ctx context.Context, in appointments.ModifyInput) (domain.Appointment, error)
	Delete(ctx context.Context, appointmentID int64, credential string) error
	Get(ctx context.Context, appointmentID int64, credential string) (domain.AppointmentDetails, error)
	ListForCustomer(ctx context.Context, customerID int64, credential string) ([]domain.Appointment, error)
}

type CatalogService interface {
	Workshops(ctx context.Context, workshopID int64) ([]domain.Workshop, error)
	Services(ctx context.Context, workshopID, serviceID int64) ([]domain.Service, error)
	Technicians(ctx context.Context, workshopID int64) ([]domain.Technician, error)
}

type TokenService interface {
	Balance(ctx context.Context, customerID int64, credential string) (int, error)
	Redeem(ctx context.Context, customerID int64, amount int, credential string) (int, error)
}

type Handler struct {
	appointments AppointmentService
	catalog      CatalogService
	tokens       TokenService
	log          *slog.Logger
	loc          *time.Location
}

func NewHandler(appts AppointmentService, catalog CatalogService, tokens TokenService, log *slog.Logger, loc *time.Location) *Handler {
	if log == nil {
		log = slog.Default()
	}
	if loc == nil {
		loc = time.Local
	}
	return &Handler{
		appointments: appts,
		catalog:      catalog,
		tokens:       tokens,
		log:          log.With(slog.String("component", "http")),
		loc:          loc,
	}
}

type appointmentView struct {
	ID                int64  `json:"id"`
	CustomerID        int64  `json:"customer_id"`
	WorkshopID        int64  `json:"workshop_id"`
	ServiceID         int64  `json:"service_id"`
	TechnicianID      int64  `json:"technician_id"`
	ScheduledTime     string `json:"scheduledTime"`
	EndTime           string `json:"endTime"`
	CreatedAt         string `json:"createdAt"`
	ModifiedAt        string `json:"modifiedAt"`
	AppointmentStatus string `json:"appointmentStatus"`
	PaymentMethod     string `json:"paymentMethod"`
	PaymentStatus     string `json:"paymentStatus"`
}

type appointmentDetailsView struct {
	appointmentView
	WorkshopName    string `json:"workshop_name"`
	ServiceName     string `json:"service_name"`
	ServiceDuration int    `json:"duration"`
	TechnicianName  string `json:"technician_name"`
}

type tokensView struct {
	CustomerID int64 `json:"customer_id"`
	Tokens     int   `json:"tokens"`
}

func (h *Handler) wire(t time.Time) string {
	return domain.FormatWireTime(t.In(h.loc))
}

func (h *Handler) view(a domain.Appointment) appointmentView {
	return appointmentView{
		ID:                a.ID,
		CustomerID:        a.CustomerID,
		WorkshopID:        a.WorkshopID,
		ServiceID:         a.ServiceID,
		TechnicianID:      a.TechnicianID,
		ScheduledTime:     h.wire(a.ScheduledTime),
		EndTime:           h.wire(a.EndTime),
		CreatedAt:         h.wire(a.CreatedAt),
		ModifiedAt:        h.wire(a.ModifiedAt),
		AppointmentStatus: a.AppointmentStatus,
		PaymentMethod:     string(a.PaymentMethod),
		PaymentStatus:     a.PaymentStatus,
	}
}

func (h *Handler) listSlots(c *gin.Context) {
	workshopID, err := requiredID(c, "workshop_id")
	if err != nil {
		h.fail(c, err)
		return
	}
	serviceID, err := requiredID(c, "service_id")
	if err != nil {
		h.fail(c, err)
		return
	}
	date := c.Query("date")
	if date == "" {
		date = c.Query("scheduledTime")
	}
	if strings.TrimSpace(date) == "" {
		h.fail(c, apperr.Validation("missing required parameter date or scheduledTime"))
		return
	}

	slots, err := h.appointments.ListSlots(c.Request.Context(), appointments.SlotQuery{
		Date:       date,
		WorkshopID: workshopID,
		ServiceID:  serviceID,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	out := make([]string, 0, len(slots))
	for _, s := range slots {
		out = append(out, h.wire(s))
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) createAppointment(c *gin.Context) {
	customerID, err := requiredID(c, "customer_id")
	if err != nil {
		h.fail(c, err)
		return
	}
	workshopID, err := requiredID(c, "workshop_id")
	if err != nil {
		h.fail(c, err)
		return
	}
	serviceID, err := requiredID(c, "service_id")
	if err != nil {
		h.fail(c, err)
		return
	}

	res, err := h.appointments.Create(c.Request.Context(), appointments.CreateInput{
		CustomerID:    customerID,
		WorkshopID:    workshopID,
		ServiceID:     serviceID,
		ScheduledTime: c.Query("scheduledTime"),
		PaymentMethod: c.Query("paymentMethod"),
		Credential:    credential(c),
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	h.log.InfoContext(c.Request.Context(), "appointment created",
		slog.Int64("appointment_id", res.Appointment.ID),
		slog.Int64("customer_id", res.Appointment.CustomerID),
		slog.String("scheduled_time", h.wire(res.Appointment.ScheduledTime)),
	)
	c.JSON(http.StatusCreated, gin.H{
		"appointment": h.view(res.Appointment),
		"customer":    res.Customer,
	})
}

func (h *Handler) modifyAppointment(c *gin.Context) {
	appointmentID, err := requiredID(c, "appointment_id")
	if err != nil {
		h.fail(c, err)
		return
	}
	appt, err := h.appointments.Modify(c.Request.Context(), appointments.ModifyInput{
		AppointmentID: appointmentID,
		ScheduledTime: c.Query("scheduledTime"),
		PaymentMethod: c.Query("paymentMethod"),
		Credential:    credential(c),
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	h.log.InfoContext(c.Request.Context(), "appointment modified",
		slog.Int64("appointment_id", appt.ID),
		slog.String("scheduled_time", h.wire(appt.ScheduledTime)),
	)
	c.JSON(http.StatusOK, gin.H{"appointment": h.view(appt)})
}

func (h *Handler) deleteAppointment(c *gin.Context) {
	appointmentID, err := requiredID(c, "appointment_id")
	if err != nil {
		h.fail(c, err)
		return
	}
	if err := h.appointments.Delete(c.Request.Context(), appointmentID, credential(c)); err != nil {
		h.fail(c, err)
		return
	}
	h.log.InfoContext(c.Request.Context(), "appointment deleted", slog.Int64("appointment_id", appointmentID))
	c.JSON(http.StatusOK, gin.H{"deleted": appointmentID})
}

func (h *Handler) getAppointment(c *gin.Context) {
	appointmentID, err := requiredID(c, "appointment_id")
	if err != nil {
		h.fail(c, err)
		return
	}
	d, err := h.appointments.Get(c.Request.Context(), appointmentID, credential(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, appointmentDetailsView{
		appointmentView: h.view(d.Appointment),
		WorkshopName:    d.WorkshopName,
		ServiceName:     d.ServiceName,
		ServiceDuration: d.ServiceDuration,
		TechnicianName:  d.TechnicianName,
	})
}

func (h *Handler) customerAppointments(c *gin.Context) {
	customerID, err := requiredID(c, "customer_id")
	if err != nil {
		h.fail(c, err)
		return
	}
	rows, err := h.appointments.ListForCustomer(c.Request.Context(), customerID, credential(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	out := make([]appointmentView, 0, len(rows))
	for _, a := range rows {
		out = append(out, h.view(a))
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) customerTokens(c *gin.Context) {
	customerID, err := requiredID(c, "customer_id")
	if err != nil {
		h.fail(c, err)
		return
	}
	balance, err := h.tokens.Balance(c.Request.Context(), customerID, credential(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, tokensView{CustomerID: customerID, Tokens: balance})
}

func (h *Handler) redeemTokens(c *gin.Context) {
	customerID, err := requiredID(c, "customer_id")
	if err != nil {
		h.fail(c, err)
		return
	}
	amount, err := strconv.Atoi(strings.TrimSpace(c.Query("tokens")))
	if err != nil {
		h.fail(c, apperr.Validation("tokens must be an integer"))
		return
	}
	balance, err := h.tokens.Redeem(c.Request.Context(), customerID, amount, credential(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	h.log.InfoContext(c.Request.Context(), "tokens redeemed",
		slog.Int64("customer_id", customerID),
		slog.Int("amount", amount),
		slog.Int("balance", balance),
	)
	c.JSON(http.StatusOK, tokensView{CustomerID: customerID, Tokens: balance})
}

func (h *Handler) workshops(c *gin.Context) {
	workshopID, err := optionalID(c, "workshop_id")
	if err != nil {
		h.fail(c, err)
		return
	}
	rows, err := h.catalog.Workshops(c.Request.Context(), workshopID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

func (h *Handler) services(c *gin.Context) {
	workshopID, err := optionalID(c, "workshop_id")
	if err != nil {
		h.fail(c, err)
		return
	}
	serviceID, err := optionalID(c, "service_id")
	if err != nil {
		h.fail(c, err)
		return
	}
	rows, err := h.catalog.Services(c.Request.Context(), workshopID, serviceID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

func (h *Handler) technicians(c *gin.Context) {
	workshopID, err := requiredID(c, "workshop_id")
	if err != nil {
		h.fail(c, err)
		return
	}
	rows, err := h.catalog.Technicians(c.Request.Context(), workshopID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

func credential(c *gin.Context) string {
	return c.GetHeader("Authorization")
}

func requiredID(c *gin.Context, name string) (int64, error) {
	raw, ok := c.GetQuery(name)
	if !ok || strings.TrimSpace(raw) == "" {
		return 0, apperr.Validation("missing required parameter %s", name)
	}
	return parseID(name, raw)
}

// optionalID returns zero when the parameter is absent.
func optionalID(c *gin.Context, name string) (int64, error) {
	raw, ok := c.GetQuery(name)
	if !ok || strings.TrimSpace(raw) == "" {
		return 0, nil
	}
	return parseID(name, raw)
}

func parseID(name, raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Validation("%s must be an integer greater than 0", name)
	}
	return id, nil
}
