package handlers

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

// RequestValidator plugs validator/v10 into Echo's binding pipeline
type RequestValidator struct {
	validator *validator.Validate
}

// NewRequestValidator creates the validator used by all handlers
func NewRequestValidator() *RequestValidator {
	return &RequestValidator{validator: validator.New()}
}

// Validate implements echo.Validator
func (v *RequestValidator) Validate(i interface{}) error {
	return v.validator.Struct(i)
}

// CreateScheduleRequest is the payload for creating a fee schedule
type CreateScheduleRequest struct {
	ClassID      uint   `json:"class_id" validate:"required"`
	AcademicYear string `json:"academic_year" validate:"required"`

	TotalAmount    decimal.Decimal `json:"total_amount" validate:"required"`
	TuitionFee     decimal.Decimal `json:"tuition_fee"`
	AdmissionFee   decimal.Decimal `json:"admission_fee"`
	DevelopmentFee decimal.Decimal `json:"development_fee"`
	TransportFee   decimal.Decimal `json:"transport_fee"`
	LibraryFee     decimal.Decimal `json:"library_fee"`
	LabFee         decimal.Decimal `json:"lab_fee"`
	SportsFee      decimal.Decimal `json:"sports_fee"`
	OtherFee       decimal.Decimal `json:"other_fee"`

	InstallmentCount int     `json:"installment_count"`
	StartDate        string  `json:"start_date" validate:"required"` // 2006-01-02
	DueDateRule      *string `json:"due_date_rule,omitempty"`
	IsActive         *bool   `json:"is_active,omitempty"` // defaults to true
}

// UpdateScheduleRequest is the payload for updating a fee schedule;
// omitted fields stay unchanged
type UpdateScheduleRequest struct {
	TotalAmount    *decimal.Decimal `json:"total_amount,omitempty"`
	TuitionFee     *decimal.Decimal `json:"tuition_fee,omitempty"`
	AdmissionFee   *decimal.Decimal `json:"admission_fee,omitempty"`
	DevelopmentFee *decimal.Decimal `json:"development_fee,omitempty"`
	TransportFee   *decimal.Decimal `json:"transport_fee,omitempty"`
	LibraryFee     *decimal.Decimal `json:"library_fee,omitempty"`
	LabFee         *decimal.Decimal `json:"lab_fee,omitempty"`
	SportsFee      *decimal.Decimal `json:"sports_fee,omitempty"`
	OtherFee       *decimal.Decimal `json:"other_fee,omitempty"`

	InstallmentCount *int    `json:"installment_count,omitempty"`
	StartDate        *string `json:"start_date,omitempty"`
	DueDateRule      *string `json:"due_date_rule,omitempty"`
	IsActive         *bool   `json:"is_active,omitempty"`
}

// RecordPaymentRequest is the payload for recording a payment
type RecordPaymentRequest struct {
	StudentID     uint            `json:"student_id" validate:"required"`
	FeeScheduleID uint            `json:"fee_schedule_id" validate:"required"`
	Amount        decimal.Decimal `json:"amount" validate:"required"`
	PaymentDate   string          `json:"payment_date,omitempty"` // 2006-01-02, default today
	Mode          string          `json:"mode" validate:"required,oneof=cash online cheque bank_transfer"`
	TransactionID *string         `json:"transaction_id,omitempty"`
	ChequeNo      *string         `json:"cheque_no,omitempty"`
	BankName      *string         `json:"bank_name,omitempty"`
	Remarks       *string         `json:"remarks,omitempty"`
}

// RefundPaymentRequest is the payload for refunding a payment. A missing
// refund_amount means a full refund.
type RefundPaymentRequest struct {
	RefundAmount decimal.Decimal `json:"refund_amount"`
	Reason       string          `json:"reason,omitempty"`
}

func respondOK(c echo.Context, status int, data interface{}) error {
	return c.JSON(status, map[string]interface{}{
		"success": true,
		"data":    data,
	})
}

func parseDate(s string) (time.Time, bool) {
	t, err := time.Parse(dateLayout, s)
	return t, err == nil
}
