package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/carmarket/backend/internal/auth"
	"github.com/carmarket/backend/internal/config"
	"github.com/carmarket/backend/internal/domain/application"
	"github.com/carmarket/backend/internal/domain/partner"
	"github.com/carmarket/backend/internal/domain/vehicle"
	"github.com/carmarket/backend/internal/http/handlers"
	"github.com/carmarket/backend/internal/observability"
	"github.com/carmarket/backend/internal/repository/memory"
	"github.com/carmarket/backend/internal/server"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type fakePinger struct {
	err error
}

func (p fakePinger) Ping(_ context.Context) error {
	return p.err
}

type testEnv struct {
	router *gin.Engine
	jwt    *auth.JWTManager
	audit  *memory.AuditRepo
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	audit := memory.NewAuditRepo()
	partners := memory.NewPartnerRepo(
		partner.Entity{ID: "P1", Name: "Banco Uno", AnnualRate: decimal.NewFromInt(12), MinTerm: 12, MaxTerm: 72, Active: true},
		partner.Entity{ID: "P2", Name: "Financiera Dos", AnnualRate: decimal.RequireFromString("9.5"), MinTerm: 24, MaxTerm: 48, Active: true},
	)
	vehicles := memory.NewVehicleRepo(vehicle.Listing{ID: "car-1", Year: 2022, Price: decimal.NewFromInt(300000)})
	svc := application.NewService(
		memory.NewApplicationRepo(),
		audit,
		partner.NewCatalog(partners),
		vehicles,
		auth.RoleGate{},
		application.WithLogger(slog.Default()),
	)
	jwtManager := auth.NewJWTManager("issuer", "aud", "super-secret")
	cfg := config.Config{Env: "test", PublicRateLimitRPS: 100, PublicRateLimitBurst: 100, MaxRequestBodyBytes: 1 << 20, MinDownPaymentRatio: "0.30"}

	r := server.NewRouter(cfg, slog.Default(), server.Dependencies{
		HealthChecks:       map[string]handlers.Pinger{"database": fakePinger{}},
		ApplicationHandler: handlers.NewApplicationHandler(svc, audit),
		QuoteHandler:       handlers.NewQuoteHandler(svc),
		JWTManager:         jwtManager,
		Metrics:            observability.NewMetrics(),
	})
	return &testEnv{router: r, jwt: jwtManager, audit: audit}
}

func (e *testEnv) do(t *testing.T, method, path, userID, role string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		tok, err := e.jwt.Mint(userID, role, time.Minute)
		if err != nil {
			t.Fatalf("mint: %v", err)
		}
		req.AddCookie(&http.Cookie{Name: auth.AccessCookieName, Value: tok})
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	out := map[string]any{}
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		_ = json.Unmarshal(w.Body.Bytes(), &out)
	}
	return w, out
}

func submitBody() map[string]any {
	return map[string]any{
		"vehicleListingId": "car-1",
		"personalInfo": map[string]any{
			"fullName":        "Ana Torres",
			"email":           "ana@example.com",
			"phone":           "+52 55 1234 5678",
			"dateOfBirth":     "1990-04-12",
			"taxId":           "TOAA900412AB1",
			"nationalId":      "TOAA900412",
			"maritalStatus":   "married",
			"dependentsCount": 1,
		},
		"employmentInfo": map[string]any{
			"employmentType":  "employee",
			"companyName":     "Acme",
			"monthlyIncome":   45000,
			"yearsExperience": 6,
		},
		"financialInfo": map[string]any{
			"requestedAmount": 210000,
			"downPayment":     "90000.00",
			"preferredTerm":   48,
			"monthlyExpenses": 12000,
			"otherDebts":      0,
			"bankName":        "Banco Uno",
			"accountType":     "checking",
		},
		"emergencyContact": map[string]any{
			"name":         "Luis Torres",
			"relationship": "brother",
			"phone":        "5512345678",
		},
		"documents": []map[string]any{
			{"type": "identification", "name": "ine.pdf", "url": "https://files.example.com/ine.pdf", "size": 2048},
		},
	}
}

func TestHealthAndReadyEndpoints(t *testing.T) {
	env := newTestEnv(t)

	w, _ := env.do(t, http.MethodGet, "/health", "", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected health 200, got %d", w.Code)
	}
	w, body := env.do(t, http.MethodGet, "/ready", "", "", nil)
	if w.Code != http.StatusOK || body["database"] != "ok" {
		t.Fatalf("expected ready 200, got %d %v", w.Code, body)
	}
	w, body = env.do(t, http.MethodGet, "/v1/meta", "", "", nil)
	if w.Code != http.StatusOK || body["env"] != "test" {
		t.Fatalf("unexpected meta: %d %v", w.Code, body)
	}
	if policy, _ := body["policy"].(map[string]any); policy["minDownPaymentRatio"] != "0.30" {
		t.Fatalf("expected policy in meta, got %v", body["policy"])
	}
}

func TestReadyEndpointReportsFailingDependency(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := server.NewRouter(config.Config{Env: "test"}, slog.Default(), server.Dependencies{
		HealthChecks: map[string]handlers.Pinger{
			"database": fakePinger{},
			"cache":    fakePinger{err: errors.New("down")},
		},
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"cache":"error"`) {
		t.Fatalf("expected cache error in body, got %s", w.Body.String())
	}
}

func TestApplicationRoutesRequireAuth(t *testing.T) {
	env := newTestEnv(t)
	w, _ := env.do(t, http.MethodGet, "/v1/applications", "", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestApplicationLifecycleRoutes(t *testing.T) {
	env := newTestEnv(t)

	w, created := env.do(t, http.MethodPost, "/v1/applications", "user-1", auth.RoleApplicant, submitBody())
	if w.Code != http.StatusCreated {
		t.Fatalf("expected submit 201, got %d: %s", w.Code, w.Body.String())
	}
	if created["status"] != "pending" || created["statusLabel"] != "Pending" {
		t.Fatalf("unexpected created body: %v", created)
	}
	id, _ := created["id"].(string)
	if id == "" {
		t.Fatalf("missing id in %v", created)
	}
	base := "/v1/applications/" + id

	t.Run("stranger cannot read", func(t *testing.T) {
		w, _ := env.do(t, http.MethodGet, base, "user-2", auth.RoleApplicant, nil)
		if w.Code != http.StatusForbidden {
			t.Fatalf("expected 403, got %d", w.Code)
		}
	})

	t.Run("applicant cannot approve", func(t *testing.T) {
		w, body := env.do(t, http.MethodPost, base+"/transitions", "user-1", auth.RoleApplicant, map[string]any{
			"action": "approve", "approvedAmount": 250000, "approvedTerm": 48, "interestRate": 12,
		})
		if w.Code != http.StatusForbidden || body["error"] != "forbidden" {
			t.Fatalf("expected 403 forbidden, got %d %v", w.Code, body)
		}
	})

	t.Run("approval without rate is rejected", func(t *testing.T) {
		w, body := env.do(t, http.MethodPost, base+"/transitions", "rev-1", auth.RoleReviewer, map[string]any{
			"action": "approve", "approvedAmount": 250000, "approvedTerm": 48,
		})
		if w.Code != http.StatusBadRequest || body["error"] != "validation_failed" {
			t.Fatalf("expected 400, got %d %v", w.Code, body)
		}
	})

	t.Run("reviewer approves", func(t *testing.T) {
		w, body := env.do(t, http.MethodPost, base+"/transitions", "rev-1", auth.RoleReviewer, map[string]any{
			"action": "approve", "approvedAmount": "250000", "approvedTerm": 48, "interestRate": "12",
		})
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
		}
		if body["status"] != "approved" || body["statusLabel"] != "Approved" {
			t.Fatalf("unexpected body: %v", body)
		}
		review, _ := body["reviewInfo"].(map[string]any)
		approval, _ := review["approval"].(map[string]any)
		if approval["monthlyPayment"] != "6583.46" {
			t.Fatalf("expected monthly payment 6583.46, got %v", approval["monthlyPayment"])
		}
	})

	t.Run("terminal status conflicts", func(t *testing.T) {
		w, body := env.do(t, http.MethodPost, base+"/transitions", "rev-1", auth.RoleReviewer, map[string]any{
			"action": "reject", "rejectionReason": "insufficient_income",
		})
		if w.Code != http.StatusConflict || body["error"] != "illegal_transition" || body["from"] != "approved" {
			t.Fatalf("expected 409, got %d %v", w.Code, body)
		}
	})

	t.Run("schedule", func(t *testing.T) {
		w, body := env.do(t, http.MethodGet, base+"/schedule", "user-1", auth.RoleApplicant, nil)
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", w.Code)
		}
		items, _ := body["items"].([]any)
		if len(items) != 48 {
			t.Fatalf("expected 48 installments, got %d", len(items))
		}
	})

	t.Run("audit trail is reviewer only", func(t *testing.T) {
		w, _ := env.do(t, http.MethodGet, base+"/audit", "user-1", auth.RoleApplicant, nil)
		if w.Code != http.StatusForbidden {
			t.Fatalf("expected 403, got %d", w.Code)
		}
		w, body := env.do(t, http.MethodGet, base+"/audit", "rev-1", auth.RoleReviewer, nil)
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", w.Code)
		}
		items, _ := body["items"].([]any)
		if len(items) != 2 {
			t.Fatalf("expected submit and approve entries, got %v", items)
		}
		for _, item := range items {
			entry, _ := item.(map[string]any)
			if ts, _ := entry["createdAt"].(string); ts == "" || strings.HasPrefix(ts, "0001-") {
				t.Fatalf("audit entry without timestamp: %v", entry)
			}
		}
	})
}

func TestRejectionCarriesLabel(t *testing.T) {
	env := newTestEnv(t)
	_, created := env.do(t, http.MethodPost, "/v1/applications", "user-1", auth.RoleApplicant, submitBody())
	id, _ := created["id"].(string)

	w, body := env.do(t, http.MethodPost, "/v1/applications/"+id+"/transitions", "rev-1", auth.RoleReviewer, map[string]any{
		"action": "reject", "rejectionReason": "high_debt_ratio", "comments": "DTI above 45%",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if body["rejectionReasonLabel"] != "High debt-to-income ratio" {
		t.Fatalf("unexpected label: %v", body["rejectionReasonLabel"])
	}
}

func TestSubmitValidationListsViolations(t *testing.T) {
	env := newTestEnv(t)
	in := submitBody()
	in["financialInfo"].(map[string]any)["requestedAmount"] = 0

	w, body := env.do(t, http.MethodPost, "/v1/applications", "user-1", auth.RoleApplicant, in)
	if w.Code != http.StatusBadRequest || body["error"] != "validation_failed" {
		t.Fatalf("expected 400 validation_failed, got %d %v", w.Code, body)
	}
	violations, _ := body["violations"].([]any)
	found := false
	for _, v := range violations {
		if m, ok := v.(map[string]any); ok && m["field"] == "financialInfo.requestedAmount" {
			found = true
		}
	}
	if !found {
		t.Fatalf("requestedAmount violation missing: %v", violations)
	}

	w, _ = env.do(t, http.MethodPost, "/v1/applications", "user-1", auth.RoleApplicant, "not an object")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed body, got %d", w.Code)
	}
}

func TestListAndDocuments(t *testing.T) {
	env := newTestEnv(t)
	_, first := env.do(t, http.MethodPost, "/v1/applications", "user-1", auth.RoleApplicant, submitBody())
	env.do(t, http.MethodPost, "/v1/applications", "user-2", auth.RoleApplicant, submitBody())

	w, body := env.do(t, http.MethodGet, "/v1/applications?applicant_id=user-2", "user-1", auth.RoleApplicant, nil)
	items, _ := body["items"].([]any)
	if w.Code != http.StatusOK || len(items) != 1 {
		t.Fatalf("applicant must only see own records, got %d items", len(items))
	}

	_, body = env.do(t, http.MethodGet, "/v1/applications?tax_id=toaa900412ab1", "rev-1", auth.RoleReviewer, nil)
	items, _ = body["items"].([]any)
	if len(items) != 2 {
		t.Fatalf("reviewer tax id search expected 2, got %d", len(items))
	}

	w, _ = env.do(t, http.MethodGet, "/v1/applications?status=archived", "rev-1", auth.RoleReviewer, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown status, got %d", w.Code)
	}

	id, _ := first["id"].(string)
	w, body = env.do(t, http.MethodPost, "/v1/applications/"+id+"/documents", "user-1", auth.RoleApplicant, map[string]any{
		"type": "income_proof", "name": "nomina.pdf", "url": "https://files.example.com/nomina.pdf", "size": 4096,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	docs, _ := body["documents"].([]any)
	if len(docs) != 2 {
		t.Fatalf("expected 2 documents, got %d", len(docs))
	}

	w, body = env.do(t, http.MethodGet, "/v1/applications/00000000-0000-0000-0000-000000000000", "rev-1", auth.RoleReviewer, nil)
	if w.Code != http.StatusNotFound || body["error"] != "application_not_found" {
		t.Fatalf("expected 404, got %d %v", w.Code, body)
	}
}

func TestPublicQuoteAndPartners(t *testing.T) {
	env := newTestEnv(t)

	w, body := env.do(t, http.MethodPost, "/v1/quotes", "", "", map[string]any{
		"vehiclePrice": 300000, "downPayment": 90000, "termMonths": 48, "partnerId": "P1",
	})
	if w.Code != http.StatusOK || body["computable"] != true || body["monthlyPayment"] != "5530.11" {
		t.Fatalf("unexpected quote: %d %v", w.Code, body)
	}

	w, body = env.do(t, http.MethodPost, "/v1/quotes", "", "", map[string]any{
		"vehiclePrice": 300000, "downPayment": 80000, "termMonths": 48, "partnerId": "P1",
	})
	if w.Code != http.StatusOK || body["computable"] != false || body["reason"] != application.QuoteDownPaymentBelowMinimum {
		t.Fatalf("expected not computable quote, got %d %v", w.Code, body)
	}

	w, body = env.do(t, http.MethodPost, "/v1/quotes", "", "", map[string]any{
		"vehiclePrice": 300000, "downPayment": 90000, "termMonths": 48, "partnerId": "P404",
	})
	if w.Code != http.StatusNotFound || body["error"] != "partner_not_found" {
		t.Fatalf("expected 404, got %d %v", w.Code, body)
	}

	w, body = env.do(t, http.MethodGet, "/v1/partners?listing_id=car-1", "", "", nil)
	items, _ := body["items"].([]any)
	if w.Code != http.StatusOK || len(items) != 2 {
		t.Fatalf("expected 2 partners, got %d %v", w.Code, body)
	}
	if first, _ := items[0].(map[string]any); first["id"] != "P2" {
		t.Fatalf("expected cheapest partner first, got %v", items[0])
	}

	w, _ = env.do(t, http.MethodGet, "/v1/partners?vehicle_year=abc", "", "", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestPublicRoutesAreRateLimited(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := application.NewService(memory.NewApplicationRepo(), nil, partner.NewCatalog(memory.NewPartnerRepo()), nil, auth.RoleGate{})
	r := server.NewRouter(config.Config{Env: "test", PublicRateLimitRPS: 0.001, PublicRateLimitBurst: 1}, slog.Default(), server.Dependencies{
		QuoteHandler: handlers.NewQuoteHandler(svc),
	})

	codes := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/partners", nil))
		codes = append(codes, w.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusTooManyRequests {
		t.Fatalf("unexpected status sequence: %v", codes)
	}
}

func TestPublicRateLimitIgnoresSpoofedForwardedFor(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := application.NewService(memory.NewApplicationRepo(), nil, partner.NewCatalog(memory.NewPartnerRepo()), nil, auth.RoleGate{})
	r := server.NewRouter(config.Config{Env: "test", PublicRateLimitRPS: 0.001, PublicRateLimitBurst: 1}, slog.Default(), server.Dependencies{
		QuoteHandler: handlers.NewQuoteHandler(svc),
	})

	limited := 0
	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodGet, "/v1/partners", nil)
		req.RemoteAddr = "198.51.100.7:5000"
		req.Header.Set("X-Forwarded-For", "203.0.113."+strconv.Itoa(i+1))
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code == http.StatusTooManyRequests {
			limited++
		}
	}
	if limited != 4 {
		t.Fatalf("expected 4 limited requests from one peer, got %d", limited)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodGet, "/health", "", "", nil)

	w, _ := env.do(t, http.MethodGet, "/metrics", "", "", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "carmarket_http_requests_total") {
		t.Fatalf("metrics not exposed: %d", w.Code)
	}
}
