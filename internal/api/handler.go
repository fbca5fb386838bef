package api

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/yakoovad/hackreg/internal/auth"
	"github.com/yakoovad/hackreg/internal/config"
	"github.com/yakoovad/hackreg/internal/model"
	"github.com/yakoovad/hackreg/internal/service"
	"github.com/yakoovad/hackreg/internal/validation"
	"github.com/yakoovad/hackreg/pkg/logger"
	"go.uber.org/zap"
)

const registeredMessage = "Team registered successfully"

type Handler struct {
	registration *service.RegistrationService
	validator    *validation.Validator
	signer       *auth.Signer

	healthChecker HealthChecker
	limiter       middleware.RateLimiterStore

	cfg    config.ServerConfig
	logger *zap.Logger
}

func NewHandler(logger *zap.Logger, cfg config.ServerConfig) *Handler {
	return &Handler{
		cfg:    cfg,
		logger: logger,
	}
}

func (h *Handler) WithRegistrationService(s *service.RegistrationService) *Handler {
	h.registration = s
	return h
}

func (h *Handler) WithValidator(v *validation.Validator) *Handler {
	h.validator = v
	return h
}

func (h *Handler) WithSigner(s *auth.Signer) *Handler {
	h.signer = s
	return h
}

func (h *Handler) WithHealthChecker(c HealthChecker) *Handler {
	h.healthChecker = c
	return h
}

func (h *Handler) WithRateLimiter(store middleware.RateLimiterStore) *Handler {
	h.limiter = store
	return h
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.HTTPErrorHandler = h.HTTPErrorHandler
	if h.validator != nil {
		e.Validator = h.validator
	}

	e.Use(middleware.RequestID())
	e.Use(ZapLoggerMiddleware(h.logger))
	e.Use(middleware.Recover())
	e.Use(middleware.Secure())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{AllowOrigins: h.cfg.CORSOrigins}))
	if h.cfg.BodyLimit != "" {
		e.Use(middleware.BodyLimit(h.cfg.BodyLimit))
	}
	if h.limiter != nil {
		e.Use(RateLimitMiddleware(h.limiter))
	}

	api := e.Group(strings.TrimSuffix(h.cfg.Prefix, "/"))

	if h.healthChecker != nil {
		api.GET("/health", h.healthChecker.HealthCheck())
	}

	api.GET("/check/team", h.CheckTeamName)
	api.GET("/check/member", h.CheckMemberEmail)
	api.POST("/register", h.RegisterTeam)
	api.GET("/options", h.Options)

	if h.signer == nil {
		h.logger.Warn("auth secret not configured, admin routes disabled")
		return
	}

	admin := api.Group("/admin", AuthMiddleware(h.signer, auth.TokenTypeAdmin))

	admin.GET("/teams", h.ListTeams)
	admin.GET("/teams/:id", h.GetTeam)
}

type existsResponse struct {
	Success bool `json:"success"`
	Exists  bool `json:"exists"`
}

type teamResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Team    *model.Team `json:"team"`
}

type teamsResponse struct {
	Success bool          `json:"success"`
	Teams   []*model.Team `json:"teams"`
}

type optionsResponse struct {
	Success bool `json:"success"`
	validation.Policy
}

func (h *Handler) CheckTeamName(e echo.Context) error {
	l := logger.FromContext(e.Request().Context())

	var q model.CheckTeamQuery
	if err := ProcessRequest(e, &q, bindQuery[model.CheckTeamQuery]); err != nil {
		l.Info("invalid query", zap.Error(err))
		return err
	}

	exists, err := h.registration.CheckTeamNameExists(e.Request().Context(), &q)
	if err != nil {
		return err
	}

	return e.JSON(http.StatusOK, existsResponse{Success: true, Exists: exists})
}

func (h *Handler) CheckMemberEmail(e echo.Context) error {
	l := logger.FromContext(e.Request().Context())

	var q model.CheckMemberQuery
	if err := ProcessRequest(e, &q, bindQuery[model.CheckMemberQuery]); err != nil {
		l.Info("invalid query", zap.Error(err))
		return err
	}

	exists, err := h.registration.CheckMemberEmailExists(e.Request().Context(), &q)
	if err != nil {
		return err
	}

	return e.JSON(http.StatusOK, existsResponse{Success: true, Exists: exists})
}

func (h *Handler) RegisterTeam(e echo.Context) error {
	l := logger.FromContext(e.Request().Context())

	var req model.RegisterTeamRequest
	if err := ProcessRequest(e, &req, h.decodeRegistration); err != nil {
		l.Info("invalid registration body", zap.Error(err))
		return err
	}

	team, err := h.registration.RegisterTeam(e.Request().Context(), &req)
	if err != nil {
		return err
	}

	return e.JSON(http.StatusCreated, teamResponse{
		Success: true,
		Message: registeredMessage,
		Team:    team,
	})
}

func (h *Handler) decodeRegistration(e echo.Context, req *model.RegisterTeamRequest) error {
	if h.validator == nil {
		if err := validation.DecodeJSON(e.Request().Body, req); err != nil {
			return bodyError(err)
		}
		return nil
	}

	decoded, err := h.validator.DecodeRegistration(e.Request().Body)
	if err != nil {
		return bodyError(err)
	}
	*req = *decoded
	return nil
}

func (h *Handler) Options(e echo.Context) error {
	return e.JSON(http.StatusOK, optionsResponse{
		Success: true,
		Policy:  h.registration.Policy(),
	})
}

func (h *Handler) GetTeam(e echo.Context) error {
	l := logger.FromContext(e.Request().Context())

	id := e.Param("id")
	l.Info("getting team", zap.String("team_id", id))

	team, err := h.registration.GetTeam(e.Request().Context(), id)
	if err != nil {
		return err
	}

	return e.JSON(http.StatusOK, teamResponse{Success: true, Team: team})
}

func (h *Handler) ListTeams(e echo.Context) error {
	l := logger.FromContext(e.Request().Context())

	var q model.ListTeamsQuery
	if err := ProcessRequest(e, &q, bindQuery[model.ListTeamsQuery], validate[model.ListTeamsQuery]); err != nil {
		l.Info("invalid query", zap.Error(err))
		return err
	}

	teams, err := h.registration.ListTeams(e.Request().Context(), &q)
	if err != nil {
		return err
	}

	return e.JSON(http.StatusOK, teamsResponse{Success: true, Teams: teams})
}
