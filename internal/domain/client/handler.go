package client

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/lims/lims/internal/platform/auth"
	"github.com/lims/lims/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group, policy *auth.Policy) {
	view := api.Group("", auth.RequirePermission(policy, "view_clients"))
	view.GET("/clients", h.List)
	view.GET("/clients/:id", h.Get)
	view.GET("/client-project-config", h.ListConfigs)
	view.GET("/client-project-config/:client_id", h.GetConfig)

	manage := api.Group("", auth.RequirePermission(policy, "manage_clients"))
	manage.POST("/clients", h.Create)
	manage.PUT("/clients/:id", h.Update)
	manage.DELETE("/clients/:id", h.Delete)
	manage.POST("/client-project-config", h.CreateConfig)
	manage.PUT("/client-project-config/:client_id", h.UpdateConfig)

	// Project-ID generation is part of project creation, so it rides the
	// project permission rather than client management.
	gen := api.Group("", auth.RequirePermission(policy, "create_projects"))
	gen.POST("/client-project-config/generate-project-id", h.GenerateProjectID)
	gen.POST("/client-project-config/check-project-id", h.CheckProjectID)
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.List(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) Get(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	cl, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "client not found")
	}
	return c.JSON(http.StatusOK, cl)
}

func (h *Handler) Create(c echo.Context) error {
	var cl Client
	if err := c.Bind(&cl); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.Create(c.Request().Context(), &cl); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, cl)
}

func (h *Handler) Update(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var cl Client
	if err := c.Bind(&cl); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	cl.ID = id
	if err := h.svc.Update(c.Request().Context(), &cl); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, cl)
}

func (h *Handler) Delete(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.Delete(c.Request().Context(), id); err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "client not found")
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ListConfigs(c echo.Context) error {
	configs, err := h.svc.ListConfigs(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if configs == nil {
		configs = []*ProjectConfig{}
	}
	return c.JSON(http.StatusOK, configs)
}

func (h *Handler) GetConfig(c echo.Context) error {
	clientID, err := strconv.ParseInt(c.Param("client_id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid client id")
	}
	cfg, err := h.svc.GetConfig(c.Request().Context(), clientID)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "client configuration not found")
	}
	return c.JSON(http.StatusOK, cfg)
}

func (h *Handler) CreateConfig(c echo.Context) error {
	var cfg ProjectConfig
	if err := c.Bind(&cfg); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateConfig(c.Request().Context(), &cfg); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, cfg)
}

func (h *Handler) UpdateConfig(c echo.Context) error {
	clientID, err := strconv.ParseInt(c.Param("client_id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid client id")
	}
	var cfg ProjectConfig
	if err := c.Bind(&cfg); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	cfg.ClientID = clientID
	if err := h.svc.UpdateConfig(c.Request().Context(), &cfg); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, cfg)
}

func (h *Handler) GenerateProjectID(c echo.Context) error {
	var req GenerateProjectIDRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	resp, err := h.svc.GenerateProjectID(c.Request().Context(), req)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) CheckProjectID(c echo.Context) error {
	var req struct {
		ProjectID string `json:"project_id"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	exists, err := h.svc.CheckProjectID(c.Request().Context(), req.ProjectID)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"exists":     exists,
		"project_id": req.ProjectID,
	})
}
