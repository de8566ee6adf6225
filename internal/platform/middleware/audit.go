package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// AuditEntry records one access to a patient-record route. It never carries
// request or response bodies.
type AuditEntry struct {
	Timestamp      time.Time
	RequestID      string
	Action         string
	Route          string
	Method         string
	PatientAddress string
	IPAddress      string
	UserAgent      string
	StatusCode     int
}

// AuditRecorder persists audit entries.
type AuditRecorder interface {
	RecordAccess(ctx context.Context, entry AuditEntry) error
}

// AuditRecorderFunc is a function adapter for AuditRecorder.
type AuditRecorderFunc func(ctx context.Context, entry AuditEntry) error

func (f AuditRecorderFunc) RecordAccess(ctx context.Context, entry AuditEntry) error {
	return f(ctx, entry)
}

// auditedRoutes maps route templates that touch patient data to an action.
var auditedRoutes = map[string]string{
	"/register":         "register",
	"/patient/:address": "read_record",
	"/generate-insight": "generate_insight",
}

// Audit logs every access to a patient-record route and hands the entry to
// each recorder. Recorder failures are logged and never fail the
// request. The middleware must run after routing so c.Path() is the template.
func Audit(logger zerolog.Logger, recorders ...AuditRecorder) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			action, ok := auditedRoutes[c.Path()]
			if !ok {
				return next(c)
			}

			err := next(c)

			req := c.Request()
			entry := AuditEntry{
				Timestamp:      time.Now().UTC(),
				Action:         action,
				Route:          c.Path(),
				Method:         req.Method,
				PatientAddress: c.Param("address"),
				IPAddress:      c.RealIP(),
				UserAgent:      req.UserAgent(),
				StatusCode:     responseStatus(c, err),
			}
			if rid, ok := c.Get("request_id").(string); ok {
				entry.RequestID = rid
			}

			for _, rec := range recorders {
				if rec == nil {
					continue
				}
				if recErr := rec.RecordAccess(req.Context(), entry); recErr != nil {
					logger.Error().Err(recErr).
						Str("request_id", entry.RequestID).
						Msg("failed to record audit entry")
				}
			}

			logger.Info().
				Str("type", "record_audit").
				Str("request_id", entry.RequestID).
				Str("action", entry.Action).
				Str("route", entry.Route).
				Str("method", entry.Method).
				Str("patient_address", entry.PatientAddress).
				Str("remote_ip", entry.IPAddress).
				Int("status", entry.StatusCode).
				Msg("record_access")

			return err
		}
	}
}

// responseStatus is the status the client will see. An unhandled error that
// is not an HTTPError ends up as a 500 in the error handler.
func responseStatus(c echo.Context, err error) int {
	if err == nil {
		return c.Response().Status
	}
	if he, ok := err.(*echo.HTTPError); ok {
		return he.Code
	}
	return http.StatusInternalServerError
}
