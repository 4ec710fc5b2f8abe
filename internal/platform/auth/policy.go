package auth

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
)

// Known roles. Every user carries exactly one.
const (
	RoleSuperAdmin  = "super_admin"
	RolePM          = "pm"
	RoleAccessioner = "accessioner"
	RoleLabTech     = "lab_tech"
	RoleLabManager  = "lab_manager"
	RoleDirector    = "director"
	RoleSales       = "sales"
)

// AllRoles lists every role the server accepts when creating users.
var AllRoles = []string{
	RoleSuperAdmin, RolePM, RoleAccessioner,
	RoleLabTech, RoleLabManager, RoleDirector, RoleSales,
}

// Policy maps named permissions to the roles allowed to exercise them.
// It is constructed at startup and injected into handlers, so deployments
// can swap the table without touching handler code.
type Policy struct {
	perms map[string][]string
}

func NewPolicy(perms map[string][]string) *Policy {
	return &Policy{perms: perms}
}

// DefaultPolicy returns the standard lab permission table.
func DefaultPolicy() *Policy {
	return NewPolicy(map[string][]string{
		// Queue views
		"accessioning_queue":  {RoleSuperAdmin, RoleAccessioner, RoleLabManager, RoleDirector},
		"extraction_queue":    {RoleSuperAdmin, RoleLabTech, RoleLabManager, RoleDirector},
		"extraction_active":   {RoleSuperAdmin, RoleLabTech, RoleLabManager, RoleDirector},
		"library_prep_queue":  {RoleSuperAdmin, RoleLabTech, RoleLabManager, RoleDirector},
		"library_prep_active": {RoleSuperAdmin, RoleLabTech, RoleLabManager, RoleDirector},
		"sequencing_queue":    {RoleSuperAdmin, RoleLabTech, RoleLabManager, RoleDirector},
		"sequencing_active":   {RoleSuperAdmin, RoleLabTech, RoleLabManager, RoleDirector},
		"reprocess_queue":     {RoleSuperAdmin, RoleLabManager, RoleDirector},

		// Sample actions
		"register_samples":      {RoleSuperAdmin, RolePM, RoleLabManager, RoleDirector},
		"accession_samples":     {RoleSuperAdmin, RoleAccessioner, RoleLabManager, RoleDirector},
		"fail_samples":          {RoleSuperAdmin, RoleLabTech, RoleLabManager, RoleDirector},
		"update_sample_status":  {RoleSuperAdmin, RoleLabTech, RoleLabManager, RoleDirector},
		"edit_samples":          {RoleSuperAdmin, RoleLabManager, RoleDirector},
		"delete_samples":        {RoleSuperAdmin, RoleDirector},
		"flag_discrepancies":    {RoleSuperAdmin, RoleAccessioner, RoleLabManager, RoleDirector},
		"approve_discrepancies": {RoleSuperAdmin, RolePM},

		// Plates
		"view_plates":     {RoleSuperAdmin, RoleLabTech, RoleLabManager, RoleDirector},
		"edit_plates":     {RoleSuperAdmin, RoleLabManager, RoleDirector},
		"finalize_plates": {RoleSuperAdmin, RoleLabManager, RoleDirector},
		"run_plates":      {RoleSuperAdmin, RoleLabTech, RoleLabManager, RoleDirector},

		// Projects and clients
		"create_projects":   {RoleSuperAdmin, RolePM, RoleDirector},
		"edit_projects":     {RoleSuperAdmin, RolePM, RoleDirector},
		"delete_projects":   {RoleSuperAdmin, RoleDirector},
		"view_all_projects": {RoleSuperAdmin, RolePM, RoleLabManager, RoleDirector, RoleSales},
		"manage_clients":    {RoleSuperAdmin, RolePM, RoleDirector},
		"view_clients":      {RoleSuperAdmin, RolePM, RoleLabManager, RoleDirector, RoleSales},

		// User management
		"manage_users": {RoleSuperAdmin},
		"view_users":   {RoleSuperAdmin, RoleDirector},

		// Employees
		"manage_employees": {RoleSuperAdmin, RoleDirector},
		"view_employees":   {RoleSuperAdmin, RolePM, RoleLabManager, RoleDirector},

		// Catalog (sample types, products, blockers)
		"manage_catalog": {RoleSuperAdmin, RoleLabManager, RoleDirector},

		// Storage management
		"manage_storage": {RoleSuperAdmin, RoleLabManager, RoleDirector},
		"view_storage":   {RoleSuperAdmin, RoleLabTech, RoleLabManager, RoleDirector},

		// Audit logs
		"view_audit_logs": {RoleSuperAdmin, RoleDirector},

		// Dashboard
		"view_dashboard": {RoleSuperAdmin, RolePM, RoleAccessioner, RoleLabTech, RoleLabManager, RoleDirector, RoleSales},
	})
}

// Allows reports whether role may exercise the named permission.
// super_admin passes every check; an unknown permission denies everyone else.
func (p *Policy) Allows(role, permission string) bool {
	if role == RoleSuperAdmin {
		return true
	}
	for _, allowed := range p.perms[permission] {
		if allowed == role {
			return true
		}
	}
	return false
}

// Permissions returns the names of every permission the role holds.
func (p *Policy) Permissions(role string) []string {
	var out []string
	for perm := range p.perms {
		if p.Allows(role, perm) {
			out = append(out, perm)
		}
	}
	return out
}

// RequirePermission returns middleware that rejects requests whose
// authenticated role lacks the named permission.
func RequirePermission(policy *Policy, permission string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role := RoleFromContext(c.Request().Context())
			if !policy.Allows(role, permission) {
				return echo.NewHTTPError(http.StatusForbidden,
					fmt.Sprintf("permission denied: %s", permission))
			}
			return next(c)
		}
	}
}

// RequireRole returns middleware that checks membership in an explicit role
// list, for the few endpoints gated on roles rather than a named permission.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role := RoleFromContext(c.Request().Context())
			if role == RoleSuperAdmin {
				return next(c)
			}
			for _, r := range roles {
				if role == r {
					return next(c)
				}
			}
			return echo.NewHTTPError(http.StatusForbidden, "insufficient role")
		}
	}
}
