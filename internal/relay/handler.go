package relay

import (
	"errors"
	"io"
	"io/fs"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/medledger/medledger/internal/ledger"
	"github.com/medledger/medledger/pkg/apperr"
)

// Response messages the browser client matches on.
const (
	MsgMissingFields        = "Missing required fields"
	MsgNotAuthorized        = "Not authorized to view patient details."
	MsgPatientAddressNeeded = "Patient address is required"
	MsgInternal             = "Internal server error"
)

// IndexPage is the file served at GET /.
const IndexPage = "login.html"

type Handler struct {
	svc      *Service
	insights Insights
	pages    fs.FS
	logger   zerolog.Logger
}

// NewHandler builds the relay's HTTP handlers. pages holds the static client
// assets and may be nil, in which case GET / answers 404.
func NewHandler(svc *Service, insights Insights, pages fs.FS, logger zerolog.Logger) *Handler {
	return &Handler{
		svc:      svc,
		insights: insights,
		pages:    pages,
		logger:   logger.With().Str("component", "relay_http").Logger(),
	}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/", h.Index)
	e.GET("/balance", h.GetBalance)
	e.POST("/register", h.RegisterPatient)
	e.GET("/patient/:address", h.GetPatient)
	e.POST("/generate-insight", h.GenerateInsight)

	if h.pages != nil {
		e.StaticFS("/", h.pages)
	}
}

func (h *Handler) Index(c echo.Context) error {
	if h.pages == nil {
		return echo.ErrNotFound
	}
	page, err := fs.ReadFile(h.pages, IndexPage)
	if err != nil {
		return err
	}
	return c.HTMLBlob(http.StatusOK, page)
}

func (h *Handler) GetBalance(c echo.Context) error {
	balance, err := h.svc.Balance(c.Request().Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("balance lookup failed")
		return fail(c, http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"success": true,
		"balance": balance,
	})
}

func (h *Handler) RegisterPatient(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return err
	}

	var req registerRequest
	if err := decodeBody(registerSchema, body, &req); err != nil {
		var violation *schemaViolation
		if errors.As(err, &violation) {
			h.logger.Debug().Err(err).Msg("register request rejected")
			return fail(c, http.StatusBadRequest, MsgMissingFields)
		}
		return err
	}

	// Past the presence check every failure is a 500, including an age the
	// contract cannot encode.
	age, err := ledger.ParseAge(req.ageText())
	if err != nil {
		h.logger.Debug().Err(err).Msg("register age rejected")
		return fail(c, http.StatusInternalServerError, err.Error())
	}

	hash, err := h.svc.Register(c.Request().Context(), req.Name, age, req.MedicalHistory)
	if err != nil {
		return fail(c, http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"success":         true,
		"transactionHash": hash.Hex(),
	})
}

// GetPatient never reveals why a lookup failed.
func (h *Handler) GetPatient(c echo.Context) error {
	rec, err := h.svc.PatientDetails(c.Request().Context(), c.Param("address"))
	if err != nil {
		return fail(c, http.StatusInternalServerError, MsgNotAuthorized)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    rec.Tuple(),
	})
}

func (h *Handler) GenerateInsight(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return err
	}

	var req insightRequest
	if err := decodeBody(insightSchema, body, &req); err != nil {
		var violation *schemaViolation
		if errors.As(err, &violation) {
			return fail(c, http.StatusBadRequest, MsgPatientAddressNeeded)
		}
		return err
	}

	res, err := h.insights.Generate(c.Request().Context(), req.PatientAddress)
	if err != nil {
		h.logger.Error().Err(err).Str("kind", string(apperr.KindOf(err))).Msg("insight generation failed")
		return fail(c, http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"success": true,
		"insight": res.GeneratedText,
	})
}

func fail(c echo.Context, status int, msg string) error {
	return c.JSON(status, map[string]interface{}{
		"success": false,
		"error":   msg,
	})
}
