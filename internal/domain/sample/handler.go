package sample

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/lims/lims/internal/platform/auth"
	"github.com/lims/lims/pkg/pagination"
)

type Handler struct {
	svc    *Service
	policy *auth.Policy
}

func NewHandler(svc *Service, policy *auth.Policy) *Handler {
	return &Handler{svc: svc, policy: policy}
}

func (h *Handler) RegisterRoutes(api *echo.Group, policy *auth.Policy) {
	api.GET("/samples", h.List)
	api.GET("/samples/:id", h.Get)
	api.GET("/samples/:id/logs", h.GetLogs)
	api.GET("/samples/queues/:name", h.Queue)

	api.POST("/samples", h.Register, auth.RequirePermission(policy, "register_samples"))
	api.POST("/samples/accession", h.Accession, auth.RequirePermission(policy, "accession_samples"))
	api.POST("/samples/route", h.Route, auth.RequirePermission(policy, "accession_samples"))
	api.POST("/samples/bulk-update", h.BulkUpdate, auth.RequirePermission(policy, "update_sample_status"))
	api.POST("/samples/:id/fail", h.Fail, auth.RequirePermission(policy, "fail_samples"))
	api.PUT("/samples/:id", h.Update, auth.RequirePermission(policy, "edit_samples"))
	api.POST("/samples/:id/logs", h.AddLog)
	api.DELETE("/samples/:id", h.Delete, auth.RequirePermission(policy, "delete_samples"))

	api.GET("/samples/:id/discrepancy-approvals", h.ListDiscrepancies)
	api.POST("/samples/:id/discrepancy-approvals", h.RaiseDiscrepancy,
		auth.RequirePermission(policy, "flag_discrepancies"))
	api.PUT("/samples/:id/discrepancy-approvals/:approval_id", h.DecideDiscrepancy,
		auth.RequirePermission(policy, "approve_discrepancies"))

	api.GET("/samples/discrepancy-approvals/:approval_id/attachments", h.ListDiscrepancyAttachments)
	api.POST("/samples/discrepancy-approvals/:approval_id/attachments", h.UploadDiscrepancyAttachment,
		auth.RequirePermission(policy, "flag_discrepancies"))
	api.GET("/samples/discrepancy-attachments/:id/download", h.DownloadDiscrepancyAttachment)
}

// queuePermissions maps a queue name to the permission guarding it.
var queuePermissions = map[string]string{
	"accessioning":        "accessioning_queue",
	"accessioned":         "accessioning_queue",
	"extraction":          "extraction_queue",
	"extraction_active":   "extraction_active",
	"dna_quant":           "library_prep_queue",
	"library_prep":        "library_prep_queue",
	"library_prep_active": "library_prep_active",
	"sequencing":          "sequencing_queue",
	"sequencing_active":   "sequencing_active",
	"analysis":            "view_dashboard",
	"reprocess":           "reprocess_queue",
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

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	f := ListFilter{
		Status: c.QueryParam("status"),
		Search: c.QueryParam("search"),
		Limit:  pg.Limit,
		Offset: pg.Offset,
	}
	if pid, err := strconv.ParseInt(c.QueryParam("project_id"), 10, 64); err == nil {
		f.ProjectID = pid
	}
	items, total, err := h.svc.List(c.Request().Context(), f)
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
	smp, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "sample not found")
	}
	return c.JSON(http.StatusOK, smp)
}

func (h *Handler) Queue(c echo.Context) error {
	name := strings.ReplaceAll(c.Param("name"), "-", "_")
	name = strings.TrimSuffix(name, "_queue")
	perm, ok := queuePermissions[name]
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "unknown queue")
	}
	if !h.policy.Allows(auth.RoleFromContext(c.Request().Context()), perm) {
		return echo.NewHTTPError(http.StatusForbidden, "insufficient permissions")
	}

	pg := pagination.FromContext(c)
	items, total, err := h.svc.Queue(c.Request().Context(), name, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) Register(c echo.Context) error {
	var smp Sample
	if err := c.Bind(&smp); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.Register(c.Request().Context(), &smp, actor(c)); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, smp)
}

func (h *Handler) Update(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var in Sample
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	smp, err := h.svc.Update(c.Request().Context(), id, &in, actor(c))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, smp)
}

func (h *Handler) Accession(c echo.Context) error {
	var req struct {
		SampleIDs []int64 `json:"sample_ids"`
		Notes     string  `json:"notes"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if len(req.SampleIDs) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "sample_ids is required")
	}
	outcomes := h.svc.AccessionSamples(c.Request().Context(), req.SampleIDs, req.Notes, actor(c))
	return c.JSON(http.StatusOK, outcomes)
}

func (h *Handler) Route(c echo.Context) error {
	var req struct {
		SampleIDs []int64 `json:"sample_ids"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if len(req.SampleIDs) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "sample_ids is required")
	}
	outcomes := h.svc.RouteSamples(c.Request().Context(), req.SampleIDs, actor(c))
	return c.JSON(http.StatusOK, outcomes)
}

func (h *Handler) BulkUpdate(c echo.Context) error {
	var req BulkUpdate
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if len(req.SampleIDs) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "sample_ids is required")
	}
	outcomes := h.svc.BulkApply(c.Request().Context(), req, actor(c))
	return c.JSON(http.StatusOK, outcomes)
}

func (h *Handler) Fail(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req FailRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	failed, reprocess, err := h.svc.Fail(c.Request().Context(), id, req, actor(c))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	resp := map[string]interface{}{"sample": failed}
	if reprocess != nil {
		resp["reprocess_sample"] = reprocess
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) GetLogs(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	logs, err := h.svc.GetLogs(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if logs == nil {
		logs = []*Log{}
	}
	return c.JSON(http.StatusOK, logs)
}

func (h *Handler) AddLog(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req struct {
		Comment string `json:"comment"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	l, err := h.svc.AddLog(c.Request().Context(), id, req.Comment, actor(c))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, l)
}

func (h *Handler) Delete(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req struct {
		Reason string `json:"reason"`
	}
	_ = c.Bind(&req)
	if req.Reason == "" {
		req.Reason = c.QueryParam("reason")
	}
	if err := h.svc.SoftDelete(c.Request().Context(), id, req.Reason, actor(c)); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ListDiscrepancies(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	items, err := h.svc.ListDiscrepancies(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if items == nil {
		items = []*DiscrepancyApproval{}
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) RaiseDiscrepancy(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req struct {
		DiscrepancyType    string `json:"discrepancy_type"`
		DiscrepancyDetails string `json:"discrepancy_details"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	a, err := h.svc.RaiseDiscrepancy(c.Request().Context(), id, req.DiscrepancyType,
		req.DiscrepancyDetails, actor(c))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, a)
}

func (h *Handler) DecideDiscrepancy(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	approvalID, err := strconv.ParseInt(c.Param("approval_id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid approval id")
	}
	var req DecisionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	a, err := h.svc.DecideDiscrepancy(c.Request().Context(), id, approvalID, req, actor(c))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) ListDiscrepancyAttachments(c echo.Context) error {
	approvalID, err := strconv.ParseInt(c.Param("approval_id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid approval id")
	}
	items, err := h.svc.ListDiscrepancyAttachments(c.Request().Context(), approvalID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if items == nil {
		items = []*ApprovalAttachment{}
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) UploadDiscrepancyAttachment(c echo.Context) error {
	approvalID, err := strconv.ParseInt(c.Param("approval_id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid approval id")
	}
	fh, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "file is required")
	}
	src, err := fh.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	defer src.Close()

	a, err := h.svc.UploadDiscrepancyAttachment(c.Request().Context(), approvalID,
		fh.Filename, fh.Header.Get("Content-Type"), src, actor(c))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, a)
}

func (h *Handler) DownloadDiscrepancyAttachment(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	a, rc, err := h.svc.OpenDiscrepancyAttachment(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "attachment not found")
	}
	defer rc.Close()

	c.Response().Header().Set(echo.HeaderContentDisposition,
		`attachment; filename="`+a.OriginalFilename+`"`)
	contentType := a.FileType
	if contentType == "" {
		contentType = echo.MIMEOctetStream
	}
	c.Response().Header().Set(echo.HeaderContentType, contentType)
	c.Response().WriteHeader(http.StatusOK)
	_, err = io.Copy(c.Response(), rc)
	return err
}
