package handler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/claim-workflow/internal/domain"
	"github.com/kursadbilgin/claim-workflow/internal/observability"
	"github.com/kursadbilgin/claim-workflow/internal/repository"
	"github.com/kursadbilgin/claim-workflow/internal/service"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	defaultLimit = 50
	maxLimit     = 200
	maxBulkIDs   = 500
)

type WorkflowService interface {
	Submit(ctx context.Context, sub domain.Submission, actorID string, role domain.Role) (*domain.Claim, error)
	GetClaim(ctx context.Context, id string) (*domain.Claim, error)
	ListClaims(ctx context.Context, filter repository.ClaimFilter) ([]domain.Claim, int64, error)
	ListActivity(ctx context.Context, claimID string) ([]domain.ActivityEntry, error)
	RequestTransition(ctx context.Context, req service.TransitionRequest) (*domain.Claim, error)
	RequestBulkTransition(ctx context.Context, req service.BulkTransitionRequest) domain.BulkOperationResult
}

type PaymentService interface {
	AuthorizePayment(ctx context.Context, claimID string, actorID string) (*domain.Claim, error)
	AuthorizePayments(ctx context.Context, claimIDs []string, actorID string) domain.BulkOperationResult
	ExecutePayment(ctx context.Context, claimID string, actorID string, transactionRef string) (*domain.Claim, error)
	ExecutePayments(ctx context.Context, claimIDs []string, actorID string, transactionRef string) (domain.BulkOperationResult, error)
}

type ClaimHandler struct {
	workflow WorkflowService
	payments PaymentService
}

func NewClaimHandler(workflow WorkflowService, payments PaymentService) (*ClaimHandler, error) {
	if workflow == nil {
		return nil, fmt.Errorf("workflow service is required")
	}
	if payments == nil {
		return nil, fmt.Errorf("payment service is required")
	}
	return &ClaimHandler{workflow: workflow, payments: payments}, nil
}

type RouteDeps struct {
	Workflow WorkflowService
	Payments PaymentService
	Limiter  RateLimiter
	Metrics  *observability.Metrics
	Logger   *zap.Logger
}

func RegisterClaimRoutes(router fiber.Router, deps RouteDeps) error {
	h, err := NewClaimHandler(deps.Workflow, deps.Payments)
	if err != nil {
		return err
	}

	throttle := ThrottleMiddleware(deps.Limiter, deps.Metrics, deps.Logger)

	v1 := router.Group("/v1", ActorMiddleware())
	v1.Post("/claims", h.SubmitClaim)
	v1.Get("/claims", h.ListClaims)
	v1.Post("/claims/bulk-transitions", throttle, h.BulkTransition)
	v1.Get("/claims/:id", h.GetClaim)
	v1.Get("/claims/:id/activity", h.ListActivity)
	v1.Post("/claims/:id/transitions", throttle, h.RequestTransition)
	v1.Post("/claims/:id/payments/authorize", throttle, h.AuthorizePayment)
	v1.Post("/claims/:id/payments/execute", throttle, h.ExecutePayment)
	v1.Post("/payments/authorize", throttle, h.AuthorizePayments)
	v1.Post("/payments/execute", throttle, h.ExecutePayments)

	return nil
}

type submitClaimRequest struct {
	IMEI              string          `json:"imei"`
	DeviceBrand       string          `json:"deviceBrand"`
	DeviceModel       string          `json:"deviceModel"`
	CustomerID        string          `json:"customerId"`
	CustomerName      string          `json:"customerName"`
	ServiceCenterID   string          `json:"serviceCenterId"`
	ServiceCenterName string          `json:"serviceCenterName"`
	RepairCost        decimal.Decimal `json:"repairCost"`
}

type transitionRequest struct {
	Transition     string `json:"transition"`
	Reason         string `json:"reason"`
	TransactionRef string `json:"transactionRef"`
}

type bulkTransitionRequest struct {
	IDs            []string `json:"ids"`
	Transition     string   `json:"transition"`
	Reason         string   `json:"reason"`
	TransactionRef string   `json:"transactionRef"`
}

type paymentRequest struct {
	IDs            []string `json:"ids"`
	TransactionRef string   `json:"transactionRef"`
}

type claimResponse struct {
	ID                  string             `json:"id"`
	IMEI                string             `json:"imei"`
	DeviceBrand         string             `json:"deviceBrand"`
	DeviceModel         string             `json:"deviceModel"`
	CustomerID          string             `json:"customerId"`
	CustomerName        string             `json:"customerName"`
	ServiceCenterID     string             `json:"serviceCenterId"`
	ServiceCenterName   string             `json:"serviceCenterName"`
	RepairCost          string             `json:"repairCost"`
	Commission          *string            `json:"commission,omitempty"`
	Status              string             `json:"status"`
	PaymentStatus       string             `json:"paymentStatus"`
	RejectionReason     string             `json:"rejectionReason,omitempty"`
	TransactionRef      string             `json:"transactionRef,omitempty"`
	SubmittedAt         time.Time          `json:"submittedAt"`
	StatusChangedAt     time.Time          `json:"statusChangedAt"`
	ApprovedAt          *time.Time         `json:"approvedAt,omitempty"`
	RepairStartedAt     *time.Time         `json:"repairStartedAt,omitempty"`
	CompletedAt         *time.Time         `json:"completedAt,omitempty"`
	PaymentAuthorizedAt *time.Time         `json:"paymentAuthorizedAt,omitempty"`
	PaymentExecutedAt   *time.Time         `json:"paymentExecutedAt,omitempty"`
	Version             int64              `json:"version"`
	Activity            []activityResponse `json:"activity,omitempty"`
}

type activityResponse struct {
	ID                string    `json:"id"`
	Action            string    `json:"action"`
	ActorID           string    `json:"actorId"`
	ActorRole         string    `json:"actorRole"`
	Detail            string    `json:"detail,omitempty"`
	FromStatus        string    `json:"fromStatus,omitempty"`
	ToStatus          string    `json:"toStatus"`
	FromPaymentStatus string    `json:"fromPaymentStatus,omitempty"`
	ToPaymentStatus   string    `json:"toPaymentStatus"`
	Timestamp         time.Time `json:"timestamp"`
}

type bulkResultResponse struct {
	Succeeded []string              `json:"succeeded"`
	Failed    []bulkFailureResponse `json:"failed"`
}

type bulkFailureResponse struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

type listClaimsResponse struct {
	Data []claimResponse `json:"data"`
	Meta listMeta        `json:"meta"`
}

type listMeta struct {
	Limit  int   `json:"limit"`
	Offset int   `json:"offset"`
	Total  int64 `json:"total"`
}

func (h *ClaimHandler) SubmitClaim(c *fiber.Ctx) error {
	var req submitClaimRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	actorID, role := actorFromRequest(c)
	claim, err := h.workflow.Submit(c.UserContext(), domain.Submission{
		IMEI:              req.IMEI,
		DeviceBrand:       req.DeviceBrand,
		DeviceModel:       req.DeviceModel,
		CustomerID:        req.CustomerID,
		CustomerName:      req.CustomerName,
		ServiceCenterID:   req.ServiceCenterID,
		ServiceCenterName: req.ServiceCenterName,
		RepairCost:        req.RepairCost,
	}, actorID, role)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(toClaimResponse(claim, true))
}

func (h *ClaimHandler) GetClaim(c *fiber.Ctx) error {
	claim, err := h.workflow.GetClaim(c.UserContext(), strings.TrimSpace(c.Params("id")))
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusOK).JSON(toClaimResponse(claim, true))
}

func (h *ClaimHandler) ListClaims(c *fiber.Ctx) error {
	filter, err := parseClaimFilter(c)
	if err != nil {
		return err
	}

	claims, total, err := h.workflow.ListClaims(c.UserContext(), filter)
	if err != nil {
		return err
	}

	data := make([]claimResponse, 0, len(claims))
	for i := range claims {
		data = append(data, toClaimResponse(&claims[i], false))
	}

	return c.Status(fiber.StatusOK).JSON(listClaimsResponse{
		Data: data,
		Meta: listMeta{Limit: filter.Limit, Offset: filter.Offset, Total: total},
	})
}

func (h *ClaimHandler) ListActivity(c *fiber.Ctx) error {
	entries, err := h.workflow.ListActivity(c.UserContext(), strings.TrimSpace(c.Params("id")))
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"data": toActivityResponses(entries),
	})
}

func (h *ClaimHandler) RequestTransition(c *fiber.Ctx) error {
	var req transitionRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	transition, err := domain.ParseTransitionFromString(req.Transition)
	if err != nil {
		return err
	}

	actorID, role := actorFromRequest(c)
	claim, err := h.workflow.RequestTransition(c.UserContext(), service.TransitionRequest{
		ClaimID:        strings.TrimSpace(c.Params("id")),
		Transition:     transition,
		ActorID:        actorID,
		ActorRole:      role,
		Reason:         req.Reason,
		TransactionRef: req.TransactionRef,
	})
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusOK).JSON(toClaimResponse(claim, false))
}

func (h *ClaimHandler) BulkTransition(c *fiber.Ctx) error {
	var req bulkTransitionRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	transition, err := domain.ParseTransitionFromString(req.Transition)
	if err != nil {
		return err
	}
	if err := validateBulkIDs(req.IDs); err != nil {
		return err
	}

	actorID, role := actorFromRequest(c)
	result := h.workflow.RequestBulkTransition(c.UserContext(), service.BulkTransitionRequest{
		ClaimIDs:       req.IDs,
		Transition:     transition,
		ActorID:        actorID,
		ActorRole:      role,
		Reason:         req.Reason,
		TransactionRef: req.TransactionRef,
	})

	return c.Status(fiber.StatusOK).JSON(toBulkResultResponse(result))
}

// Payment routes act as the sentinel admin. Any other role is sent through
// the generic engine under its own role, where the validator denies it.

func (h *ClaimHandler) AuthorizePayment(c *fiber.Ctx) error {
	claimID := strings.TrimSpace(c.Params("id"))
	actorID, role := actorFromRequest(c)

	var (
		claim *domain.Claim
		err   error
	)
	if role == domain.RoleSentinelAdmin {
		claim, err = h.payments.AuthorizePayment(c.UserContext(), claimID, actorID)
	} else {
		claim, err = h.workflow.RequestTransition(c.UserContext(), service.TransitionRequest{
			ClaimID:    claimID,
			Transition: domain.TransitionAuthorizePayment,
			ActorID:    actorID,
			ActorRole:  role,
		})
	}
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusOK).JSON(toClaimResponse(claim, false))
}

func (h *ClaimHandler) AuthorizePayments(c *fiber.Ctx) error {
	var req paymentRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := validateBulkIDs(req.IDs); err != nil {
		return err
	}

	actorID, role := actorFromRequest(c)
	var result domain.BulkOperationResult
	if role == domain.RoleSentinelAdmin {
		result = h.payments.AuthorizePayments(c.UserContext(), req.IDs, actorID)
	} else {
		result = h.workflow.RequestBulkTransition(c.UserContext(), service.BulkTransitionRequest{
			ClaimIDs:   req.IDs,
			Transition: domain.TransitionAuthorizePayment,
			ActorID:    actorID,
			ActorRole:  role,
		})
	}

	return c.Status(fiber.StatusOK).JSON(toBulkResultResponse(result))
}

func (h *ClaimHandler) ExecutePayment(c *fiber.Ctx) error {
	var req paymentRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	claimID := strings.TrimSpace(c.Params("id"))
	actorID, role := actorFromRequest(c)

	var (
		claim *domain.Claim
		err   error
	)
	if role == domain.RoleSentinelAdmin {
		claim, err = h.payments.ExecutePayment(c.UserContext(), claimID, actorID, req.TransactionRef)
	} else {
		claim, err = h.workflow.RequestTransition(c.UserContext(), service.TransitionRequest{
			ClaimID:        claimID,
			Transition:     domain.TransitionExecutePayment,
			ActorID:        actorID,
			ActorRole:      role,
			TransactionRef: req.TransactionRef,
		})
	}
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusOK).JSON(toClaimResponse(claim, false))
}

func (h *ClaimHandler) ExecutePayments(c *fiber.Ctx) error {
	var req paymentRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := validateBulkIDs(req.IDs); err != nil {
		return err
	}

	actorID, role := actorFromRequest(c)
	if role != domain.RoleSentinelAdmin {
		if strings.TrimSpace(req.TransactionRef) == "" {
			return fmt.Errorf("%w: transactionRef is required to execute payments", domain.ErrValidation)
		}
		result := h.workflow.RequestBulkTransition(c.UserContext(), service.BulkTransitionRequest{
			ClaimIDs:       req.IDs,
			Transition:     domain.TransitionExecutePayment,
			ActorID:        actorID,
			ActorRole:      role,
			TransactionRef: req.TransactionRef,
		})
		return c.Status(fiber.StatusOK).JSON(toBulkResultResponse(result))
	}

	result, err := h.payments.ExecutePayments(c.UserContext(), req.IDs, actorID, req.TransactionRef)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusOK).JSON(toBulkResultResponse(result))
}

func validateBulkIDs(ids []string) error {
	if len(ids) == 0 {
		return fmt.Errorf("%w: ids is required", domain.ErrValidation)
	}
	if len(ids) > maxBulkIDs {
		return fmt.Errorf("%w: at most %d ids per request", domain.ErrValidation, maxBulkIDs)
	}
	for _, id := range ids {
		if strings.TrimSpace(id) == "" {
			return fmt.Errorf("%w: ids must not contain blank values", domain.ErrValidation)
		}
	}
	return nil
}

func parseClaimFilter(c *fiber.Ctx) (repository.ClaimFilter, error) {
	filter := repository.ClaimFilter{
		ServiceCenterID: strings.TrimSpace(c.Query("serviceCenterId")),
		CustomerID:      strings.TrimSpace(c.Query("customerId")),
		Limit:           c.QueryInt("limit", defaultLimit),
		Offset:          c.QueryInt("offset", 0),
	}

	if filter.Limit < 1 || filter.Limit > maxLimit {
		return repository.ClaimFilter{}, fmt.Errorf("%w: limit must be between 1 and %d", domain.ErrValidation, maxLimit)
	}
	if filter.Offset < 0 {
		return repository.ClaimFilter{}, fmt.Errorf("%w: offset must be >= 0", domain.ErrValidation)
	}

	if raw := strings.TrimSpace(c.Query("status")); raw != "" {
		status, err := domain.ParseStatusFromString(raw)
		if err != nil {
			return repository.ClaimFilter{}, err
		}
		filter.Status = &status
	}

	if raw := strings.TrimSpace(c.Query("paymentStatus")); raw != "" {
		paymentStatus, err := domain.ParsePaymentStatusFromString(raw)
		if err != nil {
			return repository.ClaimFilter{}, err
		}
		filter.PaymentStatus = &paymentStatus
	}

	return filter, nil
}

func toClaimResponse(c *domain.Claim, withActivity bool) claimResponse {
	if c == nil {
		return claimResponse{}
	}

	resp := claimResponse{
		ID:                  c.ID,
		IMEI:                c.IMEI,
		DeviceBrand:         c.DeviceBrand,
		DeviceModel:         c.DeviceModel,
		CustomerID:          c.CustomerID,
		CustomerName:        c.CustomerName,
		ServiceCenterID:     c.ServiceCenterID,
		ServiceCenterName:   c.ServiceCenterName,
		RepairCost:          c.RepairCost.StringFixed(2),
		Status:              c.Status.String(),
		PaymentStatus:       c.PaymentStatus.String(),
		RejectionReason:     c.RejectionReason,
		TransactionRef:      c.TransactionRef,
		SubmittedAt:         c.SubmittedAt,
		StatusChangedAt:     c.StatusChangedAt,
		ApprovedAt:          c.ApprovedAt,
		RepairStartedAt:     c.RepairStartedAt,
		CompletedAt:         c.CompletedAt,
		PaymentAuthorizedAt: c.PaymentAuthorizedAt,
		PaymentExecutedAt:   c.PaymentExecutedAt,
		Version:             c.Version,
	}
	if c.Commission != nil {
		commission := c.Commission.StringFixed(2)
		resp.Commission = &commission
	}
	if withActivity {
		resp.Activity = toActivityResponses(c.Activity)
	}
	return resp
}

func toActivityResponses(entries []domain.ActivityEntry) []activityResponse {
	out := make([]activityResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, activityResponse{
			ID:                e.ID,
			Action:            e.Action,
			ActorID:           e.ActorID,
			ActorRole:         e.ActorRole.String(),
			Detail:            e.Detail,
			FromStatus:        e.FromStatus.String(),
			ToStatus:          e.ToStatus.String(),
			FromPaymentStatus: e.FromPaymentStatus.String(),
			ToPaymentStatus:   e.ToPaymentStatus.String(),
			Timestamp:         e.Timestamp,
		})
	}
	return out
}

func toBulkResultResponse(r domain.BulkOperationResult) bulkResultResponse {
	resp := bulkResultResponse{
		Succeeded: make([]string, 0, len(r.Succeeded)),
		Failed:    make([]bulkFailureResponse, 0, len(r.Failed)),
	}
	resp.Succeeded = append(resp.Succeeded, r.Succeeded...)
	for _, f := range r.Failed {
		resp.Failed = append(resp.Failed, bulkFailureResponse{ID: f.ClaimID, Reason: f.Reason})
	}
	return resp
}
