// Package reporting serves dashboard measures as read-only SQL aggregates.
package reporting

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"

	"github.com/lims/lims/internal/platform/auth"
)

// MeasureDefinition defines a dashboard measure with its SQL query.
type MeasureDefinition struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	SQL         string `json:"sql"`
}

// MeasureReport holds the results of evaluating a measure.
type MeasureReport struct {
	MeasureID   string                   `json:"measure_id"`
	MeasureName string                   `json:"measure_name"`
	GeneratedAt time.Time                `json:"generated_at"`
	Results     []map[string]interface{} `json:"results"`
}

// PredefinedMeasures is the list of available dashboard measures.
var PredefinedMeasures = []MeasureDefinition{
	{
		ID:          "samples-by-status",
		Name:        "Samples by Status",
		Description: "Active sample counts grouped by workflow status",
		SQL:         `SELECT status, COUNT(*) AS total FROM samples WHERE status <> 'deleted' GROUP BY status ORDER BY total DESC`,
	},
	{
		ID:          "samples-with-discrepancies",
		Name:        "Samples with Open Discrepancies",
		Description: "Samples flagged with a discrepancy that has not been resolved",
		SQL:         `SELECT COUNT(*) AS total FROM samples WHERE has_discrepancy AND NOT discrepancy_resolved AND status <> 'deleted'`,
	},
	{
		ID:          "projects-by-status",
		Name:        "Projects by Status",
		Description: "Project counts grouped by status",
		SQL:         `SELECT status, COUNT(*) AS total FROM projects WHERE status <> 'deleted' GROUP BY status ORDER BY total DESC`,
	},
	{
		ID:          "overdue-projects",
		Name:        "Overdue Projects",
		Description: "Projects past their due date that have not been delivered",
		SQL:         `SELECT project_id, name, due_date FROM projects WHERE status <> 'deleted' AND due_date < NOW() AND status NOT IN ('completed', 'cancelled') ORDER BY due_date`,
	},
	{
		ID:          "plates-by-status",
		Name:        "Extraction Plates by Status",
		Description: "Extraction plate counts grouped by status",
		SQL:         `SELECT status, COUNT(*) AS total FROM extraction_plates GROUP BY status ORDER BY total DESC`,
	},
	{
		ID:          "queue-depths",
		Name:        "Queue Depths",
		Description: "Samples waiting in each processing queue",
		SQL:         `SELECT status AS queue, COUNT(*) AS total FROM samples WHERE status IN ('registered', 'received', 'accessioned', 'extraction_queue', 'dna_quant_queue', 'extracted', 'library_prepped', 'sequenced') GROUP BY status ORDER BY total DESC`,
	},
}

// Handler provides HTTP handlers for the dashboard API.
type Handler struct {
	pool *pgxpool.Pool
}

func NewHandler(pool *pgxpool.Pool) *Handler {
	return &Handler{pool: pool}
}

// RegisterRoutes registers the dashboard API routes.
func (h *Handler) RegisterRoutes(api *echo.Group, policy *auth.Policy) {
	g := api.Group("/dashboard", auth.RequirePermission(policy, "view_dashboard"))
	g.GET("/stats", h.Stats)
	g.GET("/measures", h.ListMeasures)
	g.GET("/measures/:id/evaluate", h.EvaluateMeasure)
}

// Stats returns the headline dashboard numbers in a single response.
func (h *Handler) Stats(c echo.Context) error {
	ctx := c.Request().Context()
	stats := make(map[string]interface{}, 4)

	for _, id := range []string{"samples-by-status", "projects-by-status", "overdue-projects", "queue-depths"} {
		measure := FindMeasure(id)
		results, err := h.executeSQL(ctx, measure.SQL)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("query failed: %v", err))
		}
		stats[strings.ReplaceAll(id, "-", "_")] = results
	}
	stats["generated_at"] = time.Now()

	return c.JSON(http.StatusOK, stats)
}

// ListMeasures returns all available measure definitions.
func (h *Handler) ListMeasures(c echo.Context) error {
	return c.JSON(http.StatusOK, PredefinedMeasures)
}

// EvaluateMeasure executes a measure's SQL and returns the results.
func (h *Handler) EvaluateMeasure(c echo.Context) error {
	measure := FindMeasure(c.Param("id"))
	if measure == nil {
		return echo.NewHTTPError(http.StatusNotFound, "measure not found")
	}

	results, err := h.executeSQL(c.Request().Context(), measure.SQL)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("query failed: %v", err))
	}

	return c.JSON(http.StatusOK, MeasureReport{
		MeasureID:   measure.ID,
		MeasureName: measure.Name,
		GeneratedAt: time.Now(),
		Results:     results,
	})
}

// executeSQL runs a SQL query and returns results as a slice of maps.
func (h *Handler) executeSQL(ctx context.Context, sql string) ([]map[string]interface{}, error) {
	rows, err := h.pool.Query(ctx, sql)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	fieldDescs := rows.FieldDescriptions()
	var results []map[string]interface{}

	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}

		row := make(map[string]interface{}, len(fieldDescs))
		for i, fd := range fieldDescs {
			row[string(fd.Name)] = values[i]
		}
		results = append(results, row)
	}

	if results == nil {
		results = []map[string]interface{}{}
	}

	return results, nil
}

// FindMeasure looks up a measure by ID.
func FindMeasure(id string) *MeasureDefinition {
	for i := range PredefinedMeasures {
		if PredefinedMeasures[i].ID == id {
			return &PredefinedMeasures[i]
		}
	}
	return nil
}
