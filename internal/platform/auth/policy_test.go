package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

func TestPolicyAllows(t *testing.T) {
	policy := DefaultPolicy()

	tests := []struct {
		name       string
		role       string
		permission string
		want       bool
	}{
		{"super admin passes everything", RoleSuperAdmin, "delete_projects", true},
		{"super admin passes unknown permission", RoleSuperAdmin, "does_not_exist", true},
		{"pm can create projects", RolePM, "create_projects", true},
		{"pm cannot fail samples", RolePM, "fail_samples", false},
		{"accessioner can accession", RoleAccessioner, "accession_samples", true},
		{"accessioner cannot finalize plates", RoleAccessioner, "finalize_plates", false},
		{"lab tech can run plates", RoleLabTech, "run_plates", true},
		{"lab tech cannot edit plates", RoleLabTech, "edit_plates", false},
		{"director can delete samples", RoleDirector, "delete_samples", true},
		{"sales can view projects", RoleSales, "view_all_projects", true},
		{"sales cannot edit projects", RoleSales, "edit_projects", false},
		{"only pm approves discrepancies", RoleLabManager, "approve_discrepancies", false},
		{"pm approves discrepancies", RolePM, "approve_discrepancies", true},
		{"unknown permission denies", RoleDirector, "does_not_exist", false},
		{"empty role denies", "", "view_storage", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := policy.Allows(tt.role, tt.permission); got != tt.want {
				t.Errorf("Allows(%q, %q) = %v, want %v", tt.role, tt.permission, got, tt.want)
			}
		})
	}
}

func TestPolicyPermissions(t *testing.T) {
	policy := DefaultPolicy()

	salesPerms := policy.Permissions(RoleSales)
	if len(salesPerms) != 3 {
		t.Errorf("expected sales to hold 3 permissions, got %d: %v", len(salesPerms), salesPerms)
	}

	adminPerms := policy.Permissions(RoleSuperAdmin)
	if len(adminPerms) == 0 {
		t.Error("expected super_admin to hold every permission")
	}
}

func TestRequirePermission(t *testing.T) {
	policy := DefaultPolicy()
	issuer := NewTokenIssuer("test-secret", time.Hour)

	e := echo.New()
	handler := func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	}
	chain := JWTMiddleware(issuer)(RequirePermission(policy, "register_samples")(handler))

	makeReq := func(token string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/samples", nil)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		err := chain(c)
		if err != nil {
			e.HTTPErrorHandler(err, c)
		}
		return rec
	}

	t.Run("missing token", func(t *testing.T) {
		rec := makeReq("")
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", rec.Code)
		}
	})

	t.Run("allowed role", func(t *testing.T) {
		token, _, err := issuer.Issue("1", "pm-user", RolePM)
		if err != nil {
			t.Fatalf("issue token: %v", err)
		}
		rec := makeReq(token)
		if rec.Code != http.StatusOK {
			t.Errorf("expected 200, got %d", rec.Code)
		}
	})

	t.Run("denied role", func(t *testing.T) {
		token, _, err := issuer.Issue("1", "tech-user", RoleLabTech)
		if err != nil {
			t.Fatalf("issue token: %v", err)
		}
		rec := makeReq(token)
		if rec.Code != http.StatusForbidden {
			t.Errorf("expected 403, got %d", rec.Code)
		}
	})
}

func TestTokenIssueAndParse(t *testing.T) {
	issuer := NewTokenIssuer("test-secret", time.Hour)
	token, expiresAt, err := issuer.Issue("42", "jdoe", RoleLabManager)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if time.Until(expiresAt) <= 0 {
		t.Error("expected expiry in the future")
	}

	claims, err := issuer.Parse(token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.Subject != "42" {
		t.Errorf("subject = %q, want 42", claims.Subject)
	}
	if claims.Username != "jdoe" {
		t.Errorf("username = %q, want jdoe", claims.Username)
	}
	if claims.Role != RoleLabManager {
		t.Errorf("role = %q, want lab_manager", claims.Role)
	}
}

func TestTokenParseRejectsWrongSecret(t *testing.T) {
	issuer := NewTokenIssuer("secret-a", time.Hour)
	other := NewTokenIssuer("secret-b", time.Hour)

	token, _, err := issuer.Issue("1", "jdoe", RolePM)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := other.Parse(token); err == nil {
		t.Error("expected parse failure with a different secret")
	}
}

func TestTokenParseRejectsExpired(t *testing.T) {
	issuer := NewTokenIssuer("test-secret", -time.Minute)

	token, _, err := issuer.Issue("1", "jdoe", RolePM)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := issuer.Parse(token); err == nil {
		t.Error("expected parse failure for an expired token")
	}
}
