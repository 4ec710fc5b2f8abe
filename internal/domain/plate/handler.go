package plate

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
	view := auth.RequirePermission(policy, "view_plates")
	edit := auth.RequirePermission(policy, "edit_plates")
	run := auth.RequirePermission(policy, "run_plates")

	api.GET("/extraction-plates", h.List, view)
	api.POST("/extraction-plates", h.Create, edit)
	api.GET("/extraction-plates/:id", h.Get, view)
	api.PUT("/extraction-plates/:id", h.Update, edit)
	api.GET("/extraction-plates/:id/layout", h.Layout, view)
	api.PUT("/extraction-plates/:id/start", h.Start, run)
	api.PUT("/extraction-plates/:id/complete", h.Complete, run)
	api.PUT("/extraction-plates/:id/fail", h.Fail, run)

	api.GET("/plate-editor/:id/layout", h.Layout, view)
	api.POST("/plate-editor/:id/samples/add", h.AddSamples, edit)
	api.DELETE("/plate-editor/:id/samples/:sample_id", h.RemoveSample, edit)
	api.POST("/plate-editor/:id/controls/add", h.AddControls, edit)
	api.DELETE("/plate-editor/:id/controls/:control_id", h.RemoveControl, edit)
	api.PUT("/plate-editor/:id/finalize", h.Finalize,
		auth.RequirePermission(policy, "finalize_plates"))
}

func actor(c echo.Context) Actor {
	ctx := c.Request().Context()
	a := Actor{
		Username: auth.UsernameFromContext(ctx),
		Role:     auth.RoleFromContext(ctx),
	}
	if id, err := strconv.ParseInt(auth.UserIDFromContext(ctx), 10, 64); err == nil {
		a.ID = &id
	}
	return a
}

func plateID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid plate id")
	}
	return id, nil
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.List(c.Request().Context(), ListFilter{
		Status: c.QueryParam("status"),
		Limit:  pg.Limit,
		Offset: pg.Offset,
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) Create(c echo.Context) error {
	var in CreateInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p, err := h.svc.Create(c.Request().Context(), in)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := plateID(c)
	if err != nil {
		return err
	}
	p, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "extraction plate not found")
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) Update(c echo.Context) error {
	id, err := plateID(c)
	if err != nil {
		return err
	}
	var in UpdateInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p, err := h.svc.Update(c.Request().Context(), id, in)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) Layout(c echo.Context) error {
	id, err := plateID(c)
	if err != nil {
		return err
	}
	layout, err := h.svc.GetLayout(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return c.JSON(http.StatusOK, layout)
}

func (h *Handler) AddSamples(c echo.Context) error {
	id, err := plateID(c)
	if err != nil {
		return err
	}
	var req AddSamplesRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.AddSamples(c.Request().Context(), id, req, actor(c)); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]string{
		"message": "samples added to plate",
	})
}

func (h *Handler) RemoveSample(c echo.Context) error {
	id, err := plateID(c)
	if err != nil {
		return err
	}
	sampleID, err := strconv.ParseInt(c.Param("sample_id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid sample id")
	}
	if err := h.svc.RemoveSample(c.Request().Context(), id, sampleID, actor(c)); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]string{
		"message": "sample removed from plate",
	})
}

func (h *Handler) AddControls(c echo.Context) error {
	id, err := plateID(c)
	if err != nil {
		return err
	}
	var req ControlSetRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	controls, err := h.svc.AddControls(c.Request().Context(), id, req, actor(c))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, controls)
}

func (h *Handler) RemoveControl(c echo.Context) error {
	id, err := plateID(c)
	if err != nil {
		return err
	}
	if err := h.svc.RemoveControl(c.Request().Context(), id, c.Param("control_id"), actor(c)); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]string{
		"message": "control removed from plate",
	})
}

func (h *Handler) Finalize(c echo.Context) error {
	id, err := plateID(c)
	if err != nil {
		return err
	}
	var req struct {
		AssignedTechID int64 `json:"assigned_tech_id"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.AssignedTechID == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "assigned_tech_id is required")
	}
	p, err := h.svc.Finalize(c.Request().Context(), id, req.AssignedTechID, actor(c))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) Start(c echo.Context) error {
	id, err := plateID(c)
	if err != nil {
		return err
	}
	p, err := h.svc.Start(c.Request().Context(), id, actor(c))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) Complete(c echo.Context) error {
	id, err := plateID(c)
	if err != nil {
		return err
	}
	var req struct {
		QCData map[string]WellQC `json:"qc_data"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p, err := h.svc.Complete(c.Request().Context(), id, req.QCData, actor(c))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) Fail(c echo.Context) error {
	id, err := plateID(c)
	if err != nil {
		return err
	}
	var req struct {
		Reason string `json:"reason"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p, err := h.svc.Fail(c.Request().Context(), id, req.Reason, actor(c))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, p)
}
