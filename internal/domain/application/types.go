package application

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending     Status = "pending"
	StatusUnderReview Status = "under_review"
	StatusApproved    Status = "approved"
	StatusRejected    Status = "rejected"
	StatusCancelled   Status = "cancelled"
)

func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected || s == StatusCancelled
}

type MaritalStatus string

const (
	MaritalSingle   MaritalStatus = "single"
	MaritalMarried  MaritalStatus = "married"
	MaritalDivorced MaritalStatus = "divorced"
	MaritalWidowed  MaritalStatus = "widowed"
)

type EmploymentType string

const (
	EmploymentEmployee      EmploymentType = "employee"
	EmploymentSelfEmployed  EmploymentType = "self_employed"
	EmploymentBusinessOwner EmploymentType = "business_owner"
	EmploymentRetired       EmploymentType = "retired"
	EmploymentUnemployed    EmploymentType = "unemployed"
)

type AccountType string

const (
	AccountChecking AccountType = "checking"
	AccountSavings  AccountType = "savings"
)

type DocumentType string

const (
	DocumentIdentification DocumentType = "identification"
	DocumentIncomeProof    DocumentType = "income_proof"
	DocumentAddressProof   DocumentType = "address_proof"
	DocumentBankStatement  DocumentType = "bank_statement"
	DocumentOther          DocumentType = "other"
)

type RejectionReason string

const (
	RejectInsufficientIncome      RejectionReason = "insufficient_income"
	RejectHighDebtRatio           RejectionReason = "high_debt_ratio"
	RejectPoorCreditHistory       RejectionReason = "poor_credit_history"
	RejectIncompleteDocumentation RejectionReason = "incomplete_documentation"
	RejectUnverifiableInformation RejectionReason = "unverifiable_information"
	RejectVehicleNotEligible      RejectionReason = "vehicle_not_eligible"
	RejectOther                   RejectionReason = "other"
)

var rejectionReasons = map[RejectionReason]struct{}{
	RejectInsufficientIncome:      {},
	RejectHighDebtRatio:           {},
	RejectPoorCreditHistory:       {},
	RejectIncompleteDocumentation: {},
	RejectUnverifiableInformation: {},
	RejectVehicleNotEligible:      {},
	RejectOther:                   {},
}

func (r RejectionReason) Valid() bool {
	_, ok := rejectionReasons[r]
	return ok
}

type PersonalInfo struct {
	FullName        string        `json:"fullName" validate:"required,min=2,max=120"`
	Email           string        `json:"email" validate:"required,email"`
	Phone           string        `json:"phone" validate:"required,phone"`
	DateOfBirth     string        `json:"dateOfBirth" validate:"required,datetime=2006-01-02"`
	TaxID           string        `json:"taxId" validate:"required,min=5,max=20"`
	NationalID      string        `json:"nationalId" validate:"required,min=5,max=20"`
	MaritalStatus   MaritalStatus `json:"maritalStatus" validate:"required,oneof=single married divorced widowed"`
	DependentsCount int           `json:"dependentsCount" validate:"gte=0,lte=20"`
}

type EmploymentInfo struct {
	EmploymentType  EmploymentType  `json:"employmentType" validate:"required,oneof=employee self_employed business_owner retired unemployed"`
	CompanyName     string          `json:"companyName,omitempty" validate:"omitempty,max=160"`
	Position        string          `json:"position,omitempty" validate:"omitempty,max=120"`
	WorkAddress     string          `json:"workAddress,omitempty" validate:"omitempty,max=240"`
	MonthlyIncome   decimal.Decimal `json:"monthlyIncome" validate:"gte=0"`
	YearsExperience int             `json:"yearsExperience" validate:"gte=0,lte=70"`
}

type FinancialInfo struct {
	RequestedAmount decimal.Decimal `json:"requestedAmount" validate:"gt=0"`
	DownPayment     decimal.Decimal `json:"downPayment" validate:"gte=0"`
	PreferredTerm   int             `json:"preferredTerm" validate:"gt=0,lte=120"`
	MonthlyExpenses decimal.Decimal `json:"monthlyExpenses" validate:"gte=0"`
	OtherDebts      decimal.Decimal `json:"otherDebts" validate:"gte=0"`
	BankName        string          `json:"bankName" validate:"required,max=120"`
	AccountType     AccountType     `json:"accountType" validate:"required,oneof=checking savings"`
}

type EmergencyContact struct {
	Name         string `json:"name" validate:"required,min=2,max=120"`
	Relationship string `json:"relationship" validate:"required,max=60"`
	Phone        string `json:"phone" validate:"required,phone"`
	Address      string `json:"address,omitempty" validate:"omitempty,max=240"`
}

type Document struct {
	ID         string       `json:"id"`
	Type       DocumentType `json:"type"`
	Name       string       `json:"name"`
	URL        string       `json:"url"`
	Size       int64        `json:"size"`
	UploadedAt time.Time    `json:"uploadedAt"`
}

type DocumentInput struct {
	Type DocumentType `json:"type" validate:"required,oneof=identification income_proof address_proof bank_statement other"`
	Name string       `json:"name" validate:"required,max=255"`
	URL  string       `json:"url" validate:"required,url"`
	Size int64        `json:"size" validate:"gt=0,lte=26214400"`
}

// Approval is the decision payload carried by an approved application. The
// monthly payment is always derived from the other three figures.
type Approval struct {
	ApprovedAmount decimal.Decimal `json:"approvedAmount"`
	ApprovedTerm   int             `json:"approvedTerm"`
	InterestRate   decimal.Decimal `json:"interestRate"`
	MonthlyPayment decimal.Decimal `json:"monthlyPayment"`
	PartnerID      string          `json:"partnerId,omitempty"`
	Comments       string          `json:"comments,omitempty"`
}

type Rejection struct {
	Reason   RejectionReason `json:"rejectionReason"`
	Comments string          `json:"comments,omitempty"`
}

// ReviewInfo records the reviewer's last action. Exactly one of Approval and
// Rejection is set on a decided application; both are nil while under review.
type ReviewInfo struct {
	ReviewerID string     `json:"reviewerId"`
	ReviewedAt time.Time  `json:"reviewedAt"`
	Approval   *Approval  `json:"approval,omitempty"`
	Rejection  *Rejection `json:"rejection,omitempty"`
}

type Entity struct {
	ID               string           `json:"id"`
	ApplicantID      string           `json:"applicantId"`
	VehicleListingID string           `json:"vehicleListingId,omitempty"`
	PersonalInfo     PersonalInfo     `json:"personalInfo"`
	EmploymentInfo   EmploymentInfo   `json:"employmentInfo"`
	FinancialInfo    FinancialInfo    `json:"financialInfo"`
	EmergencyContact EmergencyContact `json:"emergencyContact"`
	Documents        []Document       `json:"documents"`
	Status           Status           `json:"status"`
	ReviewInfo       *ReviewInfo      `json:"reviewInfo,omitempty"`
	TaxIDHash        []byte           `json:"-"`
	CreatedAt        time.Time        `json:"createdAt"`
	SubmittedAt      time.Time        `json:"submittedAt"`
	UpdatedAt        time.Time        `json:"updatedAt"`
}

type SubmitInput struct {
	VehicleListingID string           `json:"vehicleListingId,omitempty"`
	PersonalInfo     PersonalInfo     `json:"personalInfo"`
	EmploymentInfo   EmploymentInfo   `json:"employmentInfo"`
	FinancialInfo    FinancialInfo    `json:"financialInfo"`
	EmergencyContact EmergencyContact `json:"emergencyContact"`
	Documents        []DocumentInput  `json:"documents" validate:"dive"`
}

type ListFilter struct {
	ApplicantID      string
	Status           Status
	VehicleListingID string
	TaxIDHash        []byte
	Limit            int32
	Offset           int32
}

// Identity is the verified principal acting on an application. Role is
// opaque to this package and only ever read by the Gate implementation.
type Identity struct {
	ID   string
	Role string
}

type Gate interface {
	CanView(identity Identity, app *Entity) bool
	CanReview(identity Identity) bool
	CanCancel(identity Identity, app *Entity) bool
}

var (
	ErrNotFound       = errors.New("application_not_found")
	ErrStatusConflict = errors.New("application_status_conflict")
)

// Repository persists applications. UpdateStatus must only apply when the
// stored status still equals expected, returning ErrStatusConflict otherwise.
// AppendDocument returns ErrStatusConflict on rejected or cancelled records.
type Repository interface {
	Create(ctx context.Context, app *Entity) error
	GetByID(ctx context.Context, id string) (*Entity, error)
	List(ctx context.Context, f ListFilter) ([]Entity, error)
	UpdateStatus(ctx context.Context, id string, expected, next Status, review *ReviewInfo, updatedAt time.Time) (*Entity, error)
	AppendDocument(ctx context.Context, id string, doc Document, updatedAt time.Time) (*Entity, error)
}

type AuditLogInput struct {
	ActorID    string
	Action     string
	TargetType string
	TargetID   string
	Payload    []byte
}

// AuditEntry is a stored audit record as read back for the trail.
type AuditEntry struct {
	ActorID    string
	Action     string
	TargetType string
	TargetID   string
	Payload    []byte
	CreatedAt  time.Time
}

type AuditRepository interface {
	Log(ctx context.Context, in AuditLogInput) error
}
