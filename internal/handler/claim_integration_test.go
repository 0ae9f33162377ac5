package handler

import (
	"bytes"
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/kursadbilgin/claim-workflow/internal/domain"
	"github.com/kursadbilgin/claim-workflow/internal/observability"
	"github.com/kursadbilgin/claim-workflow/internal/repository"
	"github.com/kursadbilgin/claim-workflow/internal/service"
	"github.com/kursadbilgin/claim-workflow/internal/transport"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const adminRole = "samsung-sentinel-admin"

func TestClaimIntegration_RequiresActorHeaders(t *testing.T) {
	t.Parallel()

	app := newClaimTestApp(t, &stubWorkflowService{}, &stubPaymentService{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/claims/c-1", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
}

func TestClaimIntegration_ActorRoleIsParsed(t *testing.T) {
	t.Parallel()

	var gotRole domain.Role
	svc := &stubWorkflowService{
		requestTransitionFn: func(ctx context.Context, req service.TransitionRequest) (*domain.Claim, error) {
			gotRole = req.ActorRole
			return testClaim(req.ClaimID), nil
		},
	}
	app := newClaimTestApp(t, svc, &stubPaymentService{}, nil)

	resp, raw := performRequest(t, app, http.MethodPost, "/v1/claims/c-1/transitions", `{"transition":"approve"}`, "partner-1", " Samsung-Partners ")
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", resp.StatusCode, raw)
	}
	if gotRole != domain.RolePartner {
		t.Fatalf("role = %q, want %q", gotRole, domain.RolePartner)
	}

	gotRole = ""
	resp, raw = performRequest(t, app, http.MethodPost, "/v1/claims/c-1/transitions", `{"transition":"approve"}`, "guest-1", "guest")
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("status = %d, want 401 for unknown role, body=%s", resp.StatusCode, raw)
	}
	if !strings.Contains(string(raw), "unknown actor role") {
		t.Fatalf("body = %s, want unknown actor role message", raw)
	}
	if gotRole != "" {
		t.Fatalf("workflow called with role %q for rejected actor", gotRole)
	}
}

func TestClaimIntegration_SubmitClaim(t *testing.T) {
	t.Parallel()

	svc := &stubWorkflowService{
		submitFn: func(ctx context.Context, sub domain.Submission, actorID string, role domain.Role) (*domain.Claim, error) {
			if actorID != "partner-1" || role != domain.RolePartner {
				t.Fatalf("actor = %s/%s, want partner-1/samsung-partners", actorID, role)
			}
			if !sub.RepairCost.Equal(decimal.RequireFromString("120.5")) {
				t.Fatalf("repairCost = %s, want 120.5", sub.RepairCost)
			}
			return domain.NewClaim("c-new", sub, time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
		},
	}
	app := newClaimTestApp(t, svc, &stubPaymentService{}, nil)

	body := `{"imei":"490154203237518","deviceBrand":"Samsung","deviceModel":"A54","customerId":"cust-1","customerName":"Ada","serviceCenterId":"sc-1","serviceCenterName":"Ikeja","repairCost":"120.50"}`
	resp, raw := performRequest(t, app, http.MethodPost, "/v1/claims", body, "partner-1", "samsung-partners")
	if resp.StatusCode != fiber.StatusCreated {
		t.Fatalf("status = %d, want 201, body=%s", resp.StatusCode, raw)
	}

	var created map[string]any
	if err := json.Unmarshal(raw, &created); err != nil {
		t.Fatalf("json unmarshal error = %v", err)
	}
	if created["id"] != "c-new" || created["status"] != "pending" || created["repairCost"] != "120.50" {
		t.Fatalf("body = %v", created)
	}
}

func TestClaimIntegration_RequestTransition(t *testing.T) {
	t.Parallel()

	var gotCorrelationID string
	svc := &stubWorkflowService{
		requestTransitionFn: func(ctx context.Context, req service.TransitionRequest) (*domain.Claim, error) {
			gotCorrelationID, _ = observability.CorrelationIDFromContext(ctx)
			switch req.ClaimID {
			case "approved":
				return nil, &domain.InvalidTransitionError{
					ClaimID:    req.ClaimID,
					Transition: req.Transition,
					Reason:     "claim has already been approved",
					NoOp:       true,
				}
			case "missing":
				return nil, fmt.Errorf("%w: claim missing", domain.ErrNotFound)
			case "raced":
				return nil, fmt.Errorf("%w: claim raced changed since version 2", domain.ErrConcurrentModification)
			}

			if req.Transition != domain.TransitionReject || req.Reason != "not covered" {
				t.Fatalf("request = %+v", req)
			}
			claim := testClaim(req.ClaimID)
			claim.Status = domain.StatusRejected
			claim.RejectionReason = req.Reason
			return claim, nil
		},
	}
	app := newClaimTestApp(t, svc, &stubPaymentService{}, nil)

	body := `{"transition":"reject","reason":"not covered"}`
	resp, raw := performRequest(t, app, http.MethodPost, "/v1/claims/c-1/transitions", body, "partner-1", "samsung-partners")
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", resp.StatusCode, raw)
	}
	if gotCorrelationID == "" {
		t.Fatal("correlation id should be propagated from request id")
	}

	resp, raw = performRequest(t, app, http.MethodPost, "/v1/claims/approved/transitions", `{"transition":"approve"}`, "partner-1", "samsung-partners")
	if resp.StatusCode != fiber.StatusConflict {
		t.Fatalf("status = %d, want 409, body=%s", resp.StatusCode, raw)
	}
	var denied map[string]any
	if err := json.Unmarshal(raw, &denied); err != nil {
		t.Fatalf("json unmarshal error = %v", err)
	}
	if denied["reason"] != "claim has already been approved" || denied["noOp"] != true {
		t.Fatalf("body = %v, want reason and noOp", denied)
	}

	resp, _ = performRequest(t, app, http.MethodPost, "/v1/claims/missing/transitions", `{"transition":"approve"}`, "partner-1", "samsung-partners")
	if resp.StatusCode != fiber.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}

	resp, _ = performRequest(t, app, http.MethodPost, "/v1/claims/raced/transitions", `{"transition":"approve"}`, "partner-1", "samsung-partners")
	if resp.StatusCode != fiber.StatusConflict {
		t.Fatalf("status = %d, want 409 for concurrent modification", resp.StatusCode)
	}

	resp, _ = performRequest(t, app, http.MethodPost, "/v1/claims/c-1/transitions", `{"transition":"archive"}`, "partner-1", "samsung-partners")
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("status = %d, want 400 for unknown transition", resp.StatusCode)
	}
}

func TestClaimIntegration_BulkTransition(t *testing.T) {
	t.Parallel()

	svc := &stubWorkflowService{
		requestBulkTransitionFn: func(ctx context.Context, req service.BulkTransitionRequest) domain.BulkOperationResult {
			if req.Transition != domain.TransitionApprove || len(req.ClaimIDs) != 3 {
				t.Fatalf("request = %+v", req)
			}
			return domain.BulkOperationResult{
				Succeeded: []string{"A", "C"},
				Failed:    []domain.BulkFailure{{ClaimID: "B", Reason: "not found"}},
			}
		},
	}
	app := newClaimTestApp(t, svc, &stubPaymentService{}, nil)

	resp, raw := performRequest(t, app, http.MethodPost, "/v1/claims/bulk-transitions", `{"ids":["A","B","C"],"transition":"approve"}`, "partner-1", "samsung-partners")
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", resp.StatusCode, raw)
	}

	var result bulkResultResponse
	if err := json.Unmarshal(raw, &result); err != nil {
		t.Fatalf("json unmarshal error = %v", err)
	}
	if len(result.Succeeded) != 2 || len(result.Failed) != 1 || result.Failed[0] != (bulkFailureResponse{ID: "B", Reason: "not found"}) {
		t.Fatalf("result = %+v", result)
	}

	resp, _ = performRequest(t, app, http.MethodPost, "/v1/claims/bulk-transitions", `{"ids":[],"transition":"approve"}`, "partner-1", "samsung-partners")
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("status = %d, want 400 for empty ids", resp.StatusCode)
	}
}

func TestClaimIntegration_PaymentsRouteByRole(t *testing.T) {
	t.Parallel()

	var adminCalls, engineCalls int
	payments := &stubPaymentService{
		executePaymentsFn: func(ctx context.Context, ids []string, actorID string, ref string) (domain.BulkOperationResult, error) {
			adminCalls++
			if ref != "TXN123" {
				t.Fatalf("transactionRef = %q, want TXN123", ref)
			}
			return domain.BulkOperationResult{Succeeded: ids}, nil
		},
	}
	workflow := &stubWorkflowService{
		requestBulkTransitionFn: func(ctx context.Context, req service.BulkTransitionRequest) domain.BulkOperationResult {
			engineCalls++
			if req.ActorRole != domain.RolePartner {
				t.Fatalf("role = %s, want samsung-partners", req.ActorRole)
			}
			failed := make([]domain.BulkFailure, 0, len(req.ClaimIDs))
			for _, id := range req.ClaimIDs {
				failed = append(failed, domain.BulkFailure{ClaimID: id, Reason: "role samsung-partners not permitted to execute payment for a claim"})
			}
			return domain.BulkOperationResult{Failed: failed}
		},
	}
	app := newClaimTestApp(t, workflow, payments, nil)

	body := `{"ids":["A","B"],"transactionRef":"TXN123"}`
	resp, raw := performRequest(t, app, http.MethodPost, "/v1/payments/execute", body, "admin-1", adminRole)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", resp.StatusCode, raw)
	}

	resp, raw = performRequest(t, app, http.MethodPost, "/v1/payments/execute", body, "partner-1", "samsung-partners")
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", resp.StatusCode, raw)
	}
	var result bulkResultResponse
	if err := json.Unmarshal(raw, &result); err != nil {
		t.Fatalf("json unmarshal error = %v", err)
	}
	if len(result.Failed) != 2 {
		t.Fatalf("failed = %+v, want both denied", result.Failed)
	}

	if adminCalls != 1 || engineCalls != 1 {
		t.Fatalf("admin calls = %d engine calls = %d, want 1 and 1", adminCalls, engineCalls)
	}
}

func TestClaimIntegration_ExecutePaymentsRequiresReference(t *testing.T) {
	t.Parallel()

	payments := &stubPaymentService{
		executePaymentsFn: func(ctx context.Context, ids []string, actorID string, ref string) (domain.BulkOperationResult, error) {
			if strings.TrimSpace(ref) == "" {
				return domain.BulkOperationResult{}, fmt.Errorf("%w: transactionRef is required to execute payments", domain.ErrValidation)
			}
			return domain.BulkOperationResult{Succeeded: ids}, nil
		},
	}
	app := newClaimTestApp(t, &stubWorkflowService{}, payments, nil)

	resp, raw := performRequest(t, app, http.MethodPost, "/v1/payments/execute", `{"ids":["A"]}`, "admin-1", adminRole)
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("status = %d, want 400, body=%s", resp.StatusCode, raw)
	}
}

func TestClaimIntegration_ListClaims(t *testing.T) {
	t.Parallel()

	svc := &stubWorkflowService{
		listClaimsFn: func(ctx context.Context, filter repository.ClaimFilter) ([]domain.Claim, int64, error) {
			if filter.Status == nil || *filter.Status != domain.StatusCompleted {
				t.Fatalf("status filter = %v, want completed", filter.Status)
			}
			if filter.PaymentStatus == nil || *filter.PaymentStatus != domain.PaymentAuthorized {
				t.Fatalf("payment filter = %v, want authorized", filter.PaymentStatus)
			}
			if filter.Limit != 10 || filter.Offset != 20 {
				t.Fatalf("limit/offset = %d/%d, want 10/20", filter.Limit, filter.Offset)
			}
			return []domain.Claim{*testClaim("A")}, 21, nil
		},
	}
	app := newClaimTestApp(t, svc, &stubPaymentService{}, nil)

	resp, raw := performRequest(t, app, http.MethodGet, "/v1/claims?status=completed&paymentStatus=authorized&limit=10&offset=20", "", "admin-1", adminRole)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", resp.StatusCode, raw)
	}

	var list listClaimsResponse
	if err := json.Unmarshal(raw, &list); err != nil {
		t.Fatalf("json unmarshal error = %v", err)
	}
	if len(list.Data) != 1 || list.Meta.Total != 21 {
		t.Fatalf("list = %+v", list)
	}

	resp, _ = performRequest(t, app, http.MethodGet, "/v1/claims?limit=1000", "", "admin-1", adminRole)
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("status = %d, want 400 for limit overflow", resp.StatusCode)
	}

	resp, _ = performRequest(t, app, http.MethodGet, "/v1/claims?status=archived", "", "admin-1", adminRole)
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("status = %d, want 400 for unknown status", resp.StatusCode)
	}
}

func TestClaimIntegration_RateLimited(t *testing.T) {
	t.Parallel()

	limiter := &stubRateLimiter{
		allowFn: func(ctx context.Context, actorID string) (bool, error) {
			return actorID != "noisy", nil
		},
	}
	svc := &stubWorkflowService{
		requestTransitionFn: func(ctx context.Context, req service.TransitionRequest) (*domain.Claim, error) {
			return testClaim(req.ClaimID), nil
		},
	}
	app := newClaimTestApp(t, svc, &stubPaymentService{}, limiter)

	resp, _ := performRequest(t, app, http.MethodPost, "/v1/claims/c-1/transitions", `{"transition":"approve"}`, "noisy", "samsung-partners")
	if resp.StatusCode != fiber.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", resp.StatusCode)
	}

	resp, _ = performRequest(t, app, http.MethodPost, "/v1/claims/c-1/transitions", `{"transition":"approve"}`, "quiet", "samsung-partners")
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	limiter.allowFn = func(ctx context.Context, actorID string) (bool, error) {
		return false, errors.New("redis unavailable")
	}
	resp, _ = performRequest(t, app, http.MethodPost, "/v1/claims/c-1/transitions", `{"transition":"approve"}`, "noisy", "samsung-partners")
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200 when limiter fails", resp.StatusCode)
	}
}

func TestHealthIntegration_LivezAndReadyz(t *testing.T) {
	t.Parallel()

	t.Run("livez returns 200", func(t *testing.T) {
		t.Parallel()

		app := fiber.New(fiber.Config{ErrorHandler: transport.ErrorHandler(zap.NewNop())})
		RegisterHealthRoutes(app)

		resp, body := performRequest(t, app, http.MethodGet, "/livez", "", "", "")
		if resp.StatusCode != fiber.StatusOK {
			t.Fatalf("status = %d, want 200, body=%s", resp.StatusCode, string(body))
		}
	})

	t.Run("readyz returns 200 when dependencies healthy", func(t *testing.T) {
		t.Parallel()

		sqlDB := sql.OpenDB(stubConnector{})
		t.Cleanup(func() { _ = sqlDB.Close() })

		rdb := newStubRedisClient(nil)
		t.Cleanup(func() { _ = rdb.Close() })

		app := fiber.New(fiber.Config{ErrorHandler: transport.ErrorHandler(zap.NewNop())})
		RegisterHealthRoutes(app, PostgresCheck(sqlDB), RedisCheck(rdb))

		resp, body := performRequest(t, app, http.MethodGet, "/readyz", "", "", "")
		if resp.StatusCode != fiber.StatusOK {
			t.Fatalf("status = %d, want 200, body=%s", resp.StatusCode, string(body))
		}
	})

	t.Run("readyz returns 503 when a dependency is down", func(t *testing.T) {
		t.Parallel()

		sqlDB := sql.OpenDB(stubConnector{})
		t.Cleanup(func() { _ = sqlDB.Close() })

		rdb := newStubRedisClient(errors.New("redis down"))
		t.Cleanup(func() { _ = rdb.Close() })

		app := fiber.New(fiber.Config{ErrorHandler: transport.ErrorHandler(zap.NewNop())})
		RegisterHealthRoutes(app, PostgresCheck(sqlDB), RedisCheck(rdb))

		resp, body := performRequest(t, app, http.MethodGet, "/readyz", "", "", "")
		if resp.StatusCode != fiber.StatusServiceUnavailable {
			t.Fatalf("status = %d, want 503, body=%s", resp.StatusCode, string(body))
		}

		var parsed struct {
			Checks map[string]string `json:"checks"`
		}
		if err := json.Unmarshal(body, &parsed); err != nil {
			t.Fatalf("json unmarshal error = %v", err)
		}
		if parsed.Checks["postgres"] != "ok" || parsed.Checks["redis"] != "down" {
			t.Fatalf("checks = %v, want postgres ok and redis down", parsed.Checks)
		}
	})
}

func testClaim(id string) *domain.Claim {
	return &domain.Claim{
		ID:                id,
		IMEI:              "490154203237518",
		DeviceBrand:       "Samsung",
		DeviceModel:       "A54",
		CustomerID:        "cust-1",
		CustomerName:      "Ada",
		ServiceCenterID:   "sc-1",
		ServiceCenterName: "Ikeja",
		RepairCost:        decimal.RequireFromString("120.50"),
		Status:            domain.StatusPending,
		PaymentStatus:     domain.PaymentUnpaid,
		Version:           1,
	}
}

func newClaimTestApp(t *testing.T, workflow WorkflowService, payments PaymentService, limiter RateLimiter) *fiber.App {
	t.Helper()

	app := fiber.New(fiber.Config{
		ErrorHandler: transport.ErrorHandler(zap.NewNop()),
	})
	app.Use(requestid.New())

	if err := RegisterClaimRoutes(app, RouteDeps{
		Workflow: workflow,
		Payments: payments,
		Limiter:  limiter,
	}); err != nil {
		t.Fatalf("RegisterClaimRoutes() error = %v", err)
	}

	return app
}

func performRequest(t *testing.T, app *fiber.App, method string, path string, body string, actorID string, role string) (*http.Response, []byte) {
	t.Helper()

	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if actorID != "" {
		req.Header.Set(HeaderActorID, actorID)
	}
	if role != "" {
		req.Header.Set(HeaderActorRole, role)
	}

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	_ = resp.Body.Close()

	return resp, respBody
}

type stubWorkflowService struct {
	submitFn                func(ctx context.Context, sub domain.Submission, actorID string, role domain.Role) (*domain.Claim, error)
	getClaimFn              func(ctx context.Context, id string) (*domain.Claim, error)
	listClaimsFn            func(ctx context.Context, filter repository.ClaimFilter) ([]domain.Claim, int64, error)
	listActivityFn          func(ctx context.Context, claimID string) ([]domain.ActivityEntry, error)
	requestTransitionFn     func(ctx context.Context, req service.TransitionRequest) (*domain.Claim, error)
	requestBulkTransitionFn func(ctx context.Context, req service.BulkTransitionRequest) domain.BulkOperationResult
}

func (s *stubWorkflowService) Submit(ctx context.Context, sub domain.Submission, actorID string, role domain.Role) (*domain.Claim, error) {
	if s.submitFn != nil {
		return s.submitFn(ctx, sub, actorID, role)
	}
	return nil, errors.New("not implemented")
}

func (s *stubWorkflowService) GetClaim(ctx context.Context, id string) (*domain.Claim, error) {
	if s.getClaimFn != nil {
		return s.getClaimFn(ctx, id)
	}
	return nil, errors.New("not implemented")
}

func (s *stubWorkflowService) ListClaims(ctx context.Context, filter repository.ClaimFilter) ([]domain.Claim, int64, error) {
	if s.listClaimsFn != nil {
		return s.listClaimsFn(ctx, filter)
	}
	return nil, 0, errors.New("not implemented")
}

func (s *stubWorkflowService) ListActivity(ctx context.Context, claimID string) ([]domain.ActivityEntry, error) {
	if s.listActivityFn != nil {
		return s.listActivityFn(ctx, claimID)
	}
	return nil, errors.New("not implemented")
}

func (s *stubWorkflowService) RequestTransition(ctx context.Context, req service.TransitionRequest) (*domain.Claim, error) {
	if s.requestTransitionFn != nil {
		return s.requestTransitionFn(ctx, req)
	}
	return nil, errors.New("not implemented")
}

func (s *stubWorkflowService) RequestBulkTransition(ctx context.Context, req service.BulkTransitionRequest) domain.BulkOperationResult {
	if s.requestBulkTransitionFn != nil {
		return s.requestBulkTransitionFn(ctx, req)
	}
	return domain.BulkOperationResult{}
}

type stubPaymentService struct {
	authorizePaymentFn  func(ctx context.Context, claimID string, actorID string) (*domain.Claim, error)
	authorizePaymentsFn func(ctx context.Context, ids []string, actorID string) domain.BulkOperationResult
	executePaymentFn    func(ctx context.Context, claimID string, actorID string, ref string) (*domain.Claim, error)
	executePaymentsFn   func(ctx context.Context, ids []string, actorID string, ref string) (domain.BulkOperationResult, error)
}

func (s *stubPaymentService) AuthorizePayment(ctx context.Context, claimID string, actorID string) (*domain.Claim, error) {
	if s.authorizePaymentFn != nil {
		return s.authorizePaymentFn(ctx, claimID, actorID)
	}
	return nil, errors.New("not implemented")
}

func (s *stubPaymentService) AuthorizePayments(ctx context.Context, ids []string, actorID string) domain.BulkOperationResult {
	if s.authorizePaymentsFn != nil {
		return s.authorizePaymentsFn(ctx, ids, actorID)
	}
	return domain.BulkOperationResult{}
}

func (s *stubPaymentService) ExecutePayment(ctx context.Context, claimID string, actorID string, ref string) (*domain.Claim, error) {
	if s.executePaymentFn != nil {
		return s.executePaymentFn(ctx, claimID, actorID, ref)
	}
	return nil, errors.New("not implemented")
}

func (s *stubPaymentService) ExecutePayments(ctx context.Context, ids []string, actorID string, ref string) (domain.BulkOperationResult, error) {
	if s.executePaymentsFn != nil {
		return s.executePaymentsFn(ctx, ids, actorID, ref)
	}
	return domain.BulkOperationResult{}, errors.New("not implemented")
}

type stubRateLimiter struct {
	allowFn func(ctx context.Context, actorID string) (bool, error)
}

func (s *stubRateLimiter) Allow(ctx context.Context, actorID string) (bool, error) {
	if s.allowFn != nil {
		return s.allowFn(ctx, actorID)
	}
	return true, nil
}

type stubConnector struct {
	pingErr error
}

func (c stubConnector) Connect(context.Context) (driver.Conn, error) {
	return stubConn(c), nil
}

func (c stubConnector) Driver() driver.Driver {
	return stubDriver(c)
}

type stubDriver struct {
	pingErr error
}

func (d stubDriver) Open(string) (driver.Conn, error) {
	return stubConn(d), nil
}

type stubConn struct {
	pingErr error
}

func (c stubConn) Prepare(string) (driver.Stmt, error) { return nil, errors.New("not implemented") }
func (c stubConn) Close() error                        { return nil }
func (c stubConn) Begin() (driver.Tx, error)           { return nil, errors.New("not implemented") }
func (c stubConn) Ping(context.Context) error          { return c.pingErr }

type stubRedisHook struct {
	pingErr error
}

func (h stubRedisHook) DialHook(next redis.DialHook) redis.DialHook {
	return next
}

func (h stubRedisHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		if strings.EqualFold(cmd.Name(), "ping") && h.pingErr != nil {
			cmd.SetErr(h.pingErr)
			return h.pingErr
		}
		cmd.SetErr(nil)
		return nil
	}
}

func (h stubRedisHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		for _, cmd := range cmds {
			cmd.SetErr(nil)
		}
		return nil
	}
}

func newStubRedisClient(pingErr error) *redis.Client {
	rdb := redis.NewClient(&redis.Options{
		Addr:         "127.0.0.1:6379",
		DialTimeout:  time.Millisecond,
		ReadTimeout:  time.Millisecond,
		WriteTimeout: time.Millisecond,
	})
	rdb.AddHook(stubRedisHook{pingErr: pingErr})
	return rdb
}
