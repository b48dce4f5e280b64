package application

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/carmarket/backend/internal/domain/amortization"
	partnerdomain "github.com/carmarket/backend/internal/domain/partner"
	vehicledomain "github.com/carmarket/backend/internal/domain/vehicle"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/sha3"
)

const (
	DefaultMinDownPaymentRatio = "0.30"

	defaultListLimit = 50
	maxListLimit     = 200
	maxCommentLength = 1000

	AuditTargetType = "credit_application"
)

var ErrNotApproved = errors.New("application_not_approved")

type PartnerCatalog interface {
	FindEligible(ctx context.Context, vehicleYear *int) ([]partnerdomain.Entity, error)
	Get(ctx context.Context, partnerID string) (*partnerdomain.Entity, error)
	TermIsValid(ctx context.Context, partnerID string, termMonths int) (bool, error)
}

type Metrics interface {
	SubmissionObserved(outcome string)
	TransitionObserved(action Action, outcome string)
	QuoteObserved(computable bool)
}

type noopMetrics struct{}

func (noopMetrics) SubmissionObserved(string)         {}
func (noopMetrics) TransitionObserved(Action, string) {}
func (noopMetrics) QuoteObserved(bool)                {}

// TransitionPayload carries the reviewer's decision data. InterestRate is
// nullable so an omitted rate is rejected rather than read as 0%.
type TransitionPayload struct {
	ApprovedAmount  decimal.Decimal     `json:"approvedAmount"`
	ApprovedTerm    int                 `json:"approvedTerm"`
	InterestRate    decimal.NullDecimal `json:"interestRate"`
	PartnerID       string              `json:"partnerId,omitempty"`
	RejectionReason RejectionReason     `json:"rejectionReason,omitempty"`
	Comments        string              `json:"comments,omitempty"`
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithStrictVisibility makes callers who may not view an application see
// NotFoundError instead of ForbiddenError.
func WithStrictVisibility(strict bool) Option {
	return func(s *Service) { s.strictVisibility = strict }
}

func WithMinDownPaymentRatio(ratio decimal.Decimal) Option {
	return func(s *Service) { s.minDownPaymentRatio = ratio }
}

type Service struct {
	repo                Repository
	auditRepo           AuditRepository
	catalog             PartnerCatalog
	vehicles            vehicledomain.Lookup
	gate                Gate
	metrics             Metrics
	logger              *slog.Logger
	strictVisibility    bool
	minDownPaymentRatio decimal.Decimal
	now                 func() time.Time
	newID               func() string
}

func NewService(repo Repository, auditRepo AuditRepository, catalog PartnerCatalog, vehicles vehicledomain.Lookup, gate Gate, opts ...Option) *Service {
	s := &Service{
		repo:                repo,
		auditRepo:           auditRepo,
		catalog:             catalog,
		vehicles:            vehicles,
		gate:                gate,
		metrics:             noopMetrics{},
		logger:              slog.Default(),
		minDownPaymentRatio: decimal.RequireFromString(DefaultMinDownPaymentRatio),
		now:                 func() time.Time { return time.Now().UTC() },
		newID:               uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// HashTaxID fingerprints a tax number so records can be matched on it without
// indexing the raw value.
func HashTaxID(taxID string) []byte {
	normalized := strings.ToUpper(strings.Join(strings.Fields(taxID), ""))
	normalized = strings.NewReplacer("-", "", ".", "").Replace(normalized)
	h := sha3.NewLegacyKeccak256()
	_, _ = h.Write([]byte(normalized))
	return h.Sum(nil)
}

func (s *Service) Submit(ctx context.Context, applicantID string, in SubmitInput) (*Entity, error) {
	app, err := s.submit(ctx, applicantID, in)
	s.metrics.SubmissionObserved(outcomeOf(err))
	return app, err
}

func (s *Service) submit(ctx context.Context, applicantID string, in SubmitInput) (*Entity, error) {
	if strings.TrimSpace(applicantID) == "" {
		return nil, &ForbiddenError{Action: "submit"}
	}

	now := s.now()
	violations := validateSubmission(in, now)

	listingID := strings.TrimSpace(in.VehicleListingID)
	if listingID != "" && s.vehicles != nil {
		listing, err := s.vehicles.GetListing(ctx, listingID)
		switch {
		case errors.Is(err, vehicledomain.ErrNotFound):
			violations = append(violations, Violation{Field: "vehicleListingId", Code: "not_found", Message: "vehicle listing does not exist"})
		case err != nil:
			return nil, fmt.Errorf("lookup listing: %w", err)
		case in.FinancialInfo.DownPayment.GreaterThan(listing.Price):
			violations = append(violations, Violation{Field: "financialInfo.downPayment", Code: "out_of_range", Message: "must not exceed the vehicle price"})
		}
	}
	if len(violations) > 0 {
		return nil, &ValidationError{Violations: violations}
	}

	docs := make([]Document, 0, len(in.Documents))
	for _, d := range in.Documents {
		docs = append(docs, s.newDocument(d, now))
	}

	app := &Entity{
		ID:               s.newID(),
		ApplicantID:      applicantID,
		VehicleListingID: listingID,
		PersonalInfo:     normalizePersonalInfo(in.PersonalInfo),
		EmploymentInfo:   in.EmploymentInfo,
		FinancialInfo:    in.FinancialInfo,
		EmergencyContact: in.EmergencyContact,
		Documents:        docs,
		Status:           StatusPending,
		TaxIDHash:        HashTaxID(in.PersonalInfo.TaxID),
		CreatedAt:        now,
		SubmittedAt:      now,
		UpdatedAt:        now,
	}
	if err := s.repo.Create(ctx, app); err != nil {
		return nil, fmt.Errorf("create application: %w", err)
	}

	s.audit(ctx, applicantID, "application_submitted", app.ID, map[string]any{
		"tax_id_hash":      hex.EncodeToString(app.TaxIDHash),
		"requested_amount": app.FinancialInfo.RequestedAmount.String(),
		"preferred_term":   app.FinancialInfo.PreferredTerm,
	})
	return app, nil
}

// Transition applies action to the application on behalf of identity. The
// write is conditional on the status read here, so of two concurrent actions
// only one lands and the other gets IllegalTransitionError.
func (s *Service) Transition(ctx context.Context, applicationID string, identity Identity, action Action, payload TransitionPayload) (*Entity, error) {
	app, err := s.transition(ctx, applicationID, identity, action, payload)
	s.metrics.TransitionObserved(action, outcomeOf(err))
	return app, err
}

func (s *Service) transition(ctx context.Context, applicationID string, identity Identity, action Action, payload TransitionPayload) (*Entity, error) {
	if !action.Valid() {
		return nil, &ValidationError{Violations: []Violation{{Field: "action", Code: "invalid_option", Message: "must be one of: start_review approve reject cancel"}}}
	}
	if action.reviewerAction() && !s.gate.CanReview(identity) {
		return nil, &ForbiddenError{Action: string(action)}
	}

	app, err := s.load(ctx, applicationID, identity, string(action))
	if err != nil {
		return nil, err
	}

	next, ok := Next(app.Status, action)
	if !ok {
		return nil, &IllegalTransitionError{From: app.Status, Action: action}
	}
	if action == ActionCancel && !s.gate.CanCancel(identity, app) {
		return nil, &ForbiddenError{Action: string(action)}
	}

	now := s.now()
	review, err := s.buildReview(ctx, identity, action, payload, now)
	if err != nil {
		return nil, err
	}

	updated, err := s.repo.UpdateStatus(ctx, app.ID, app.Status, next, review, now)
	switch {
	case errors.Is(err, ErrStatusConflict):
		return nil, &IllegalTransitionError{From: app.Status, Action: action}
	case errors.Is(err, ErrNotFound):
		return nil, &NotFoundError{Resource: "application", ID: applicationID}
	case err != nil:
		return nil, fmt.Errorf("update application status: %w", err)
	}

	auditPayload := map[string]any{"from": app.Status, "to": next}
	if review != nil && review.Approval != nil {
		auditPayload["approved_amount"] = review.Approval.ApprovedAmount.String()
		auditPayload["approved_term"] = review.Approval.ApprovedTerm
		auditPayload["interest_rate"] = review.Approval.InterestRate.String()
		auditPayload["monthly_payment"] = review.Approval.MonthlyPayment.String()
	}
	if review != nil && review.Rejection != nil {
		auditPayload["rejection_reason"] = review.Rejection.Reason
	}
	s.audit(ctx, identity.ID, "application_"+string(action), app.ID, auditPayload)
	return updated, nil
}

func (s *Service) buildReview(ctx context.Context, identity Identity, action Action, payload TransitionPayload, now time.Time) (*ReviewInfo, error) {
	switch action {
	case ActionStartReview:
		return &ReviewInfo{ReviewerID: identity.ID, ReviewedAt: now}, nil
	case ActionApprove:
		approval, err := s.buildApproval(ctx, payload)
		if err != nil {
			return nil, err
		}
		return &ReviewInfo{ReviewerID: identity.ID, ReviewedAt: now, Approval: approval}, nil
	case ActionReject:
		var violations []Violation
		if payload.RejectionReason == "" {
			violations = append(violations, Violation{Field: "rejectionReason", Code: "required", Message: "is required"})
		} else if !payload.RejectionReason.Valid() {
			violations = append(violations, Violation{Field: "rejectionReason", Code: "invalid_option", Message: "is not a known rejection reason"})
		}
		violations = append(violations, checkComments(payload.Comments)...)
		if len(violations) > 0 {
			return nil, &ValidationError{Violations: violations}
		}
		return &ReviewInfo{
			ReviewerID: identity.ID,
			ReviewedAt: now,
			Rejection:  &Rejection{Reason: payload.RejectionReason, Comments: strings.TrimSpace(payload.Comments)},
		}, nil
	default:
		return nil, nil
	}
}

func (s *Service) buildApproval(ctx context.Context, payload TransitionPayload) (*Approval, error) {
	var violations []Violation
	if !payload.ApprovedAmount.IsPositive() {
		violations = append(violations, Violation{Field: "approvedAmount", Code: "out_of_range", Message: "must be greater than 0"})
	}
	switch {
	case payload.ApprovedTerm <= 0:
		violations = append(violations, Violation{Field: "approvedTerm", Code: "out_of_range", Message: "must be greater than 0"})
	case payload.ApprovedTerm > amortization.MaxTermMonths:
		violations = append(violations, Violation{Field: "approvedTerm", Code: "out_of_range", Message: fmt.Sprintf("must be at most %d", amortization.MaxTermMonths)})
	}
	if !payload.InterestRate.Valid {
		violations = append(violations, Violation{Field: "interestRate", Code: "required", Message: "is required"})
	} else if payload.InterestRate.Decimal.IsNegative() {
		violations = append(violations, Violation{Field: "interestRate", Code: "out_of_range", Message: "must be at least 0"})
	}
	violations = append(violations, checkComments(payload.Comments)...)

	partnerID := strings.TrimSpace(payload.PartnerID)
	if partnerID != "" && payload.ApprovedTerm > 0 && payload.ApprovedTerm <= amortization.MaxTermMonths {
		ok, err := s.catalog.TermIsValid(ctx, partnerID, payload.ApprovedTerm)
		switch {
		case errors.Is(err, partnerdomain.ErrNotFound):
			violations = append(violations, Violation{Field: "partnerId", Code: "not_found", Message: "lending partner does not exist"})
		case err != nil:
			return nil, fmt.Errorf("check partner term: %w", err)
		case !ok:
			violations = append(violations, Violation{Field: "approvedTerm", Code: "out_of_range", Message: "outside the partner's term range"})
		}
	}
	if len(violations) > 0 {
		return nil, &ValidationError{Violations: violations}
	}

	monthly, err := amortization.MonthlyPayment(payload.ApprovedAmount, payload.InterestRate.Decimal, payload.ApprovedTerm)
	if err != nil {
		return nil, err
	}
	return &Approval{
		ApprovedAmount: payload.ApprovedAmount,
		ApprovedTerm:   payload.ApprovedTerm,
		InterestRate:   payload.InterestRate.Decimal,
		MonthlyPayment: monthly,
		PartnerID:      partnerID,
		Comments:       strings.TrimSpace(payload.Comments),
	}, nil
}

func (s *Service) Get(ctx context.Context, applicationID string, identity Identity) (*Entity, error) {
	return s.load(ctx, applicationID, identity, "view")
}

// List returns applications matching f. Identities that cannot review are
// always narrowed to their own applications.
func (s *Service) List(ctx context.Context, identity Identity, f ListFilter) ([]Entity, error) {
	if !s.gate.CanReview(identity) {
		f.ApplicantID = identity.ID
	}
	if f.Limit <= 0 {
		f.Limit = defaultListLimit
	}
	if f.Limit > maxListLimit {
		f.Limit = maxListLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return s.repo.List(ctx, f)
}

func (s *Service) AppendDocument(ctx context.Context, applicationID string, identity Identity, in DocumentInput) (*Entity, error) {
	if violations := validateStruct(in); len(violations) > 0 {
		return nil, &ValidationError{Violations: violations}
	}
	app, err := s.load(ctx, applicationID, identity, "append_document")
	if err != nil {
		return nil, err
	}
	if app.ApplicantID != identity.ID {
		return nil, &ForbiddenError{Action: "append_document"}
	}
	if app.Status == StatusCancelled || app.Status == StatusRejected {
		return nil, &IllegalTransitionError{From: app.Status, Action: "append_document"}
	}

	now := s.now()
	doc := s.newDocument(in, now)
	updated, err := s.repo.AppendDocument(ctx, app.ID, doc, now)
	switch {
	case errors.Is(err, ErrStatusConflict):
		from := app.Status
		if current, gerr := s.repo.GetByID(ctx, app.ID); gerr == nil {
			from = current.Status
		}
		return nil, &IllegalTransitionError{From: from, Action: "append_document"}
	case errors.Is(err, ErrNotFound):
		return nil, &NotFoundError{Resource: "application", ID: applicationID}
	case err != nil:
		return nil, fmt.Errorf("append document: %w", err)
	}
	s.audit(ctx, identity.ID, "document_appended", app.ID, map[string]any{"document_id": doc.ID, "type": doc.Type})
	return updated, nil
}

// Schedule returns the installment table of an approved application.
func (s *Service) Schedule(ctx context.Context, applicationID string, identity Identity) ([]amortization.Installment, error) {
	app, err := s.load(ctx, applicationID, identity, "view")
	if err != nil {
		return nil, err
	}
	if app.Status != StatusApproved || app.ReviewInfo == nil || app.ReviewInfo.Approval == nil {
		return nil, ErrNotApproved
	}
	a := app.ReviewInfo.Approval
	return amortization.Schedule(a.ApprovedAmount, a.InterestRate, a.ApprovedTerm)
}

// EligiblePartners resolves the vehicle year from the listing when only a
// listing is given, then asks the catalog.
func (s *Service) EligiblePartners(ctx context.Context, vehicleYear *int, listingID string) ([]partnerdomain.Entity, error) {
	listingID = strings.TrimSpace(listingID)
	if vehicleYear == nil && listingID != "" && s.vehicles != nil {
		listing, err := s.vehicles.GetListing(ctx, listingID)
		if errors.Is(err, vehicledomain.ErrNotFound) {
			return nil, &NotFoundError{Resource: "listing", ID: listingID}
		}
		if err != nil {
			return nil, fmt.Errorf("lookup listing: %w", err)
		}
		vehicleYear = &listing.Year
	}
	return s.catalog.FindEligible(ctx, vehicleYear)
}

func (s *Service) load(ctx context.Context, applicationID string, identity Identity, action string) (*Entity, error) {
	applicationID = strings.TrimSpace(applicationID)
	if applicationID == "" {
		return nil, &NotFoundError{Resource: "application", ID: applicationID}
	}
	app, err := s.repo.GetByID(ctx, applicationID)
	if errors.Is(err, ErrNotFound) {
		return nil, &NotFoundError{Resource: "application", ID: applicationID}
	}
	if err != nil {
		return nil, fmt.Errorf("get application: %w", err)
	}
	if !s.gate.CanView(identity, app) {
		if s.strictVisibility {
			return nil, &NotFoundError{Resource: "application", ID: applicationID}
		}
		return nil, &ForbiddenError{Action: action}
	}
	return app, nil
}

func (s *Service) newDocument(in DocumentInput, now time.Time) Document {
	return Document{
		ID:         s.newID(),
		Type:       in.Type,
		Name:       strings.TrimSpace(in.Name),
		URL:        strings.TrimSpace(in.URL),
		Size:       in.Size,
		UploadedAt: now,
	}
}

func (s *Service) audit(ctx context.Context, actorID, action, targetID string, payload map[string]any) {
	if s.auditRepo == nil {
		return
	}
	raw, _ := json.Marshal(payload)
	if err := s.auditRepo.Log(ctx, AuditLogInput{
		ActorID:    actorID,
		Action:     action,
		TargetType: AuditTargetType,
		TargetID:   targetID,
		Payload:    raw,
	}); err != nil {
		s.logger.Warn("audit log write failed", "action", action, "target_id", targetID, "err", err)
	}
}

func checkComments(comments string) []Violation {
	if len(strings.TrimSpace(comments)) > maxCommentLength {
		return []Violation{{Field: "comments", Code: "out_of_range", Message: fmt.Sprintf("must have at most %d characters", maxCommentLength)}}
	}
	return nil
}

func normalizePersonalInfo(p PersonalInfo) PersonalInfo {
	p.FullName = strings.Join(strings.Fields(p.FullName), " ")
	p.Email = strings.ToLower(strings.TrimSpace(p.Email))
	p.Phone = strings.TrimSpace(p.Phone)
	p.TaxID = strings.TrimSpace(p.TaxID)
	p.NationalID = strings.TrimSpace(p.NationalID)
	return p
}

func outcomeOf(err error) string {
	var (
		validationErr *ValidationError
		notFoundErr   *NotFoundError
		forbiddenErr  *ForbiddenError
		illegalErr    *IllegalTransitionError
	)
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &validationErr):
		return "validation_error"
	case errors.As(err, &notFoundErr):
		return "not_found"
	case errors.As(err, &forbiddenErr):
		return "forbidden"
	case errors.As(err, &illegalErr):
		return "illegal_transition"
	default:
		return "error"
	}
}
