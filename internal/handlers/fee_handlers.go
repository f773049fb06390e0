package handlers

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"schoolfees_app/internal/middleware"
	"schoolfees_app/internal/models"
	"schoolfees_app/internal/services"
)

// FeeHandler exposes the fee schedule catalog and the payment ledger.
// Every route is scoped by the X-School-ID header the platform gateway sets.
type FeeHandler struct {
	schedules *services.ScheduleService
	payments  *services.PaymentService
	balances  *services.BalanceService
}

func NewFeeHandler(schedules *services.ScheduleService, payments *services.PaymentService, balances *services.BalanceService) *FeeHandler {
	return &FeeHandler{schedules: schedules, payments: payments, balances: balances}
}

// CreateSchedule handles POST /api/fees/structures
func (h *FeeHandler) CreateSchedule(c echo.Context) error {
	var req CreateScheduleRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	startDate, ok := parseDate(req.StartDate)
	if !ok {
		return echo.NewHTTPError(http.StatusBadRequest, "start_date must be formatted as YYYY-MM-DD")
	}

	installments := req.InstallmentCount
	if installments == 0 {
		installments = 1
	}
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}

	schedule := models.FeeSchedule{
		SchoolID:         middleware.SchoolID(c),
		ClassID:          req.ClassID,
		AcademicYear:     req.AcademicYear,
		TotalAmount:      req.TotalAmount,
		TuitionFee:       req.TuitionFee,
		AdmissionFee:     req.AdmissionFee,
		DevelopmentFee:   req.DevelopmentFee,
		TransportFee:     req.TransportFee,
		LibraryFee:       req.LibraryFee,
		LabFee:           req.LabFee,
		SportsFee:        req.SportsFee,
		OtherFee:         req.OtherFee,
		InstallmentCount: installments,
		StartDate:        startDate,
		DueDateRule:      req.DueDateRule,
		IsActive:         active,
	}
	if err := h.schedules.CreateSchedule(c.Request().Context(), &schedule); err != nil {
		return err
	}
	return respondOK(c, http.StatusCreated, schedule)
}

// UpdateSchedule handles POST /api/fees/structures/:id
func (h *FeeHandler) UpdateSchedule(c echo.Context) error {
	scheduleID, err := pathID(c, "id")
	if err != nil {
		return err
	}

	var req UpdateScheduleRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	update := services.ScheduleUpdate{
		TotalAmount:      req.TotalAmount,
		TuitionFee:       req.TuitionFee,
		AdmissionFee:     req.AdmissionFee,
		DevelopmentFee:   req.DevelopmentFee,
		TransportFee:     req.TransportFee,
		LibraryFee:       req.LibraryFee,
		LabFee:           req.LabFee,
		SportsFee:        req.SportsFee,
		OtherFee:         req.OtherFee,
		InstallmentCount: req.InstallmentCount,
		DueDateRule:      req.DueDateRule,
		IsActive:         req.IsActive,
	}
	if req.StartDate != nil {
		startDate, ok := parseDate(*req.StartDate)
		if !ok {
			return echo.NewHTTPError(http.StatusBadRequest, "start_date must be formatted as YYYY-MM-DD")
		}
		update.StartDate = &startDate
	}

	schedule, err := h.schedules.UpdateSchedule(c.Request().Context(), scheduleID, update)
	if err != nil {
		return err
	}
	return respondOK(c, http.StatusOK, schedule)
}

// GetSchedule handles GET /api/fees/structures/:id
func (h *FeeHandler) GetSchedule(c echo.Context) error {
	scheduleID, err := pathID(c, "id")
	if err != nil {
		return err
	}

	schedule, err := h.schedules.GetSchedule(c.Request().Context(), scheduleID)
	if err != nil {
		return err
	}
	return respondOK(c, http.StatusOK, schedule)
}

// ListSchedules handles GET /api/fees/structures
func (h *FeeHandler) ListSchedules(c echo.Context) error {
	schedules, err := h.schedules.ListSchedules(c.Request().Context(), middleware.SchoolID(c), c.QueryParam("academic_year"))
	if err != nil {
		return err
	}
	return respondOK(c, http.StatusOK, schedules)
}

// DeleteSchedule handles DELETE /api/fees/structures/:id
func (h *FeeHandler) DeleteSchedule(c echo.Context) error {
	scheduleID, err := pathID(c, "id")
	if err != nil {
		return err
	}

	if err := h.schedules.DeleteSchedule(c.Request().Context(), scheduleID); err != nil {
		return err
	}
	return respondOK(c, http.StatusOK, nil)
}

// RecordPayment handles POST /api/fees/payments
func (h *FeeHandler) RecordPayment(c echo.Context) error {
	var req RecordPaymentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	mode, err := models.ParsePaymentMode(req.Mode)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	input := services.RecordPaymentInput{
		SchoolID:      middleware.SchoolID(c),
		StudentID:     req.StudentID,
		FeeScheduleID: req.FeeScheduleID,
		Amount:        req.Amount,
		Mode:          mode,
		TransactionID: req.TransactionID,
		ChequeNo:      req.ChequeNo,
		BankName:      req.BankName,
		Remarks:       req.Remarks,
		CollectedBy:   middleware.ActorID(c),
	}
	if req.PaymentDate != "" {
		paymentDate, ok := parseDate(req.PaymentDate)
		if !ok {
			return echo.NewHTTPError(http.StatusBadRequest, "payment_date must be formatted as YYYY-MM-DD")
		}
		input.PaymentDate = paymentDate
	}

	payment, err := h.payments.RecordPayment(c.Request().Context(), input)
	if err != nil {
		return err
	}
	return respondOK(c, http.StatusCreated, payment)
}

// GetPayment handles GET /api/fees/payments/:id
func (h *FeeHandler) GetPayment(c echo.Context) error {
	paymentID, err := pathID(c, "id")
	if err != nil {
		return err
	}

	payment, err := h.payments.GetPayment(c.Request().Context(), paymentID)
	if err != nil {
		return err
	}
	return respondOK(c, http.StatusOK, payment)
}

// ListPayments handles GET /api/fees/payments
func (h *FeeHandler) ListPayments(c echo.Context) error {
	filter, err := paymentFilter(c)
	if err != nil {
		return err
	}

	payments, err := h.payments.ListPayments(c.Request().Context(), filter)
	if err != nil {
		return err
	}
	return respondOK(c, http.StatusOK, payments)
}

// RefundPayment handles POST /api/fees/payments/:id/refund
func (h *FeeHandler) RefundPayment(c echo.Context) error {
	paymentID, err := pathID(c, "id")
	if err != nil {
		return err
	}

	var req RefundPaymentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	payment, err := h.payments.RefundPayment(c.Request().Context(), paymentID, req.RefundAmount, req.Reason, middleware.ActorID(c))
	if err != nil {
		return err
	}
	return respondOK(c, http.StatusOK, payment)
}

// StudentStatus handles GET /api/fees/students/:id/status
func (h *FeeHandler) StudentStatus(c echo.Context) error {
	studentID, err := pathID(c, "id")
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	balances, err := h.balances.ListForStudent(ctx, studentID)
	if err != nil {
		return err
	}
	payments, err := h.payments.ListPayments(ctx, services.PaymentFilter{StudentID: studentID})
	if err != nil {
		return err
	}
	return respondOK(c, http.StatusOK, map[string]interface{}{
		"balances": balances,
		"payments": payments,
	})
}

func pathID(c echo.Context, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || id == 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, name+" must be a positive integer")
	}
	return uint(id), nil
}

func paymentFilter(c echo.Context) (services.PaymentFilter, error) {
	filter := services.PaymentFilter{SchoolID: middleware.SchoolID(c)}

	if v := c.QueryParam("student_id"); v != "" {
		id, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return filter, echo.NewHTTPError(http.StatusBadRequest, "student_id must be an integer")
		}
		filter.StudentID = uint(id)
	}
	if v := c.QueryParam("fee_schedule_id"); v != "" {
		id, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return filter, echo.NewHTTPError(http.StatusBadRequest, "fee_schedule_id must be an integer")
		}
		filter.FeeScheduleID = uint(id)
	}
	if v := c.QueryParam("status"); v != "" {
		status, err := models.ParsePaymentStatus(v)
		if err != nil {
			return filter, echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		filter.Status = status
	}
	if v := c.QueryParam("from"); v != "" {
		from, ok := parseDate(v)
		if !ok {
			return filter, echo.NewHTTPError(http.StatusBadRequest, "from must be formatted as YYYY-MM-DD")
		}
		filter.From = from
	}
	if v := c.QueryParam("to"); v != "" {
		to, ok := parseDate(v)
		if !ok {
			return filter, echo.NewHTTPError(http.StatusBadRequest, "to must be formatted as YYYY-MM-DD")
		}
		filter.To = to
	}
	return filter, nil
}
