package rest

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"garagebook/internal/apperr"
)

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation, apperr.KindConflict:
		return http.StatusBadRequest
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// fail writes the error response. Dependency failures are logged with their cause, which never
// reaches the client.
func (h *Handler) fail(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	ctx := c.Request.Context()
	attrs := []any{
		slog.String("request_id", RequestIDFromContext(ctx)),
		slog.String("path", c.Request.URL.Path),
		slog.String("kind", kind.String()),
	}
	switch kind {
	case apperr.KindDependency:
		h.log.ErrorContext(ctx, "request failed", append(attrs, slog.Any("err", err))...)
	case apperr.KindUnauthorized:
		h.log.WarnContext(ctx, "request rejected", attrs...)
	default:
		h.log.InfoContext(ctx, "request rejected", append(attrs, slog.String("reason", apperr.ReasonOf(err)))...)
	}
	c.AbortWithStatusJSON(statusFor(kind), errorBody{Error: kind.String(), Message: apperr.ReasonOf(err)})
}

// ReadyCheck is a named dependency check run by /readyz.
type ReadyCheck struct {
	Name  string
	Check func(context.Context) error
}

type RouterConfig struct {
	Logger         *slog.Logger
	Limiter        Limiter
	FailOpen       bool
	AllowedOrigins []string
	// TrustedProxies lists the proxy IPs or CIDRs whose forwarding headers name the client.
	// Empty means the TCP peer is the client.
	TrustedProxies []string
	ReadyChecks    []ReadyCheck
}

func NewRouter(h *Handler, cfg RouterConfig) *gin.Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := gin.New()
	if err := r.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		logger.Error("invalid trusted proxies, trusting none", slog.Any("err", err))
		_ = r.SetTrustedProxies(nil)
	}
	r.Use(gin.Recovery(), requestID(), accessLog(logger), corsMiddleware(cfg.AllowedOrigins))

	registerHealthRoutes(r, cfg.ReadyChecks, logger)

	api := r.Group("")
	if cfg.Limiter != nil {
		api.Use(rateLimit(cfg.Limiter, logger, cfg.FailOpen))
	}
	{
		api.GET("/workshops", h.workshops)
		api.GET("/services", h.services)
		api.GET("/technicians", h.technicians)

		api.GET("/appointments/available", h.listSlots)
		api.GET("/appointments", h.getAppointment)
		api.POST("/appointment/create", h.createAppointment)
		api.PUT("/appointment/modify", h.modifyAppointment)
		api.DELETE("/appointment/delete", h.deleteAppointment)

		api.GET("/customer/appointments", h.customerAppointments)
		api.GET("/customer/tokens", h.customerTokens)
		api.PUT("/tokens/redeem", h.redeemTokens)
	}
	return r
}

func registerHealthRoutes(r *gin.Engine, checks []ReadyCheck, logger *slog.Logger) {
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/readyz", func(c *gin.Context) {
		var failures []string
		for _, check := range checks {
			if check.Check == nil {
				continue
			}
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			err := check.Check(ctx)
			cancel()
			if err != nil {
				name := check.Name
				if name == "" {
					name = "dependency"
				}
				logger.WarnContext(c.Request.Context(), "readiness check failed", slog.String("check", name), slog.Any("err", err))
				failures = append(failures, name)
			}
		}
		if len(failures) > 0 {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "failures": failures})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}
