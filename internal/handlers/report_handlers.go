package handlers

import (
	"encoding/csv"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"schoolfees_app/internal/middleware"
	"schoolfees_app/internal/services"
)

// defaultWindowDays is the analytics window when the caller gives no bounds
const defaultWindowDays = 30

// ReportHandler exposes defaulter lists, collection analytics and CSV exports
type ReportHandler struct {
	defaulters *services.DefaulterService
	analytics  *services.AnalyticsService
	payments   *services.PaymentService
}

func NewReportHandler(defaulters *services.DefaulterService, analytics *services.AnalyticsService, payments *services.PaymentService) *ReportHandler {
	return &ReportHandler{defaulters: defaulters, analytics: analytics, payments: payments}
}

// Defaulters handles GET /api/fees/defaulters
func (h *ReportHandler) Defaulters(c echo.Context) error {
	filter, err := defaulterFilter(c)
	if err != nil {
		return err
	}

	defaulters, err := h.defaulters.ListOverdue(c.Request().Context(), filter)
	if err != nil {
		return err
	}
	return respondOK(c, http.StatusOK, defaulters)
}

// Analytics handles GET /api/fees/analytics
func (h *ReportHandler) Analytics(c echo.Context) error {
	from, to, err := analyticsWindow(c)
	if err != nil {
		return err
	}
	schoolID := middleware.SchoolID(c)
	ctx := c.Request().Context()

	summary, err := h.analytics.Summary(ctx, schoolID, from, to)
	if err != nil {
		return err
	}
	byClass, err := h.analytics.ClassBreakdown(ctx, schoolID, from, to)
	if err != nil {
		return err
	}

	return respondOK(c, http.StatusOK, map[string]interface{}{
		"summary":  summary,
		"by_class": byClass,
	})
}

// AnalyticsTrend handles GET /api/fees/analytics/trend
func (h *ReportHandler) AnalyticsTrend(c echo.Context) error {
	from, to, err := analyticsWindow(c)
	if err != nil {
		return err
	}
	schoolID := middleware.SchoolID(c)
	ctx := c.Request().Context()

	var points []services.TrendPoint
	switch granularity := c.QueryParam("granularity"); granularity {
	case "", "daily":
		points, err = h.analytics.DailyTrend(ctx, schoolID, from, to)
	case "monthly":
		points, err = h.analytics.MonthlyTrend(ctx, schoolID, from, to)
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "granularity must be daily or monthly")
	}
	if err != nil {
		return err
	}
	return respondOK(c, http.StatusOK, points)
}

// ExportPayments handles GET /api/fees/export/payments
func (h *ReportHandler) ExportPayments(c echo.Context) error {
	filter, err := paymentFilter(c)
	if err != nil {
		return err
	}

	payments, err := h.payments.ListPayments(c.Request().Context(), filter)
	if err != nil {
		return err
	}

	c.Response().Header().Set(echo.HeaderContentType, "text/csv")
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="payments.csv"`)
	c.Response().WriteHeader(http.StatusOK)

	w := csv.NewWriter(c.Response())
	if err := w.Write([]string{"receipt_no", "student_id", "fee_schedule_id", "amount", "payment_date", "mode", "status", "collected_by"}); err != nil {
		return err
	}
	for _, p := range payments {
		record := []string{
			p.ReceiptNo,
			strconv.FormatUint(uint64(p.StudentID), 10),
			strconv.FormatUint(uint64(p.FeeScheduleID), 10),
			p.Amount.StringFixed(2),
			p.PaymentDate.Format(dateLayout),
			string(p.Mode),
			string(p.Status),
			p.CollectedBy,
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// ExportDefaulters handles GET /api/fees/export/defaulters
func (h *ReportHandler) ExportDefaulters(c echo.Context) error {
	filter, err := defaulterFilter(c)
	if err != nil {
		return err
	}

	defaulters, err := h.defaulters.ListOverdue(c.Request().Context(), filter)
	if err != nil {
		return err
	}

	c.Response().Header().Set(echo.HeaderContentType, "text/csv")
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="defaulters.csv"`)
	c.Response().WriteHeader(http.StatusOK)

	w := csv.NewWriter(c.Response())
	if err := w.Write([]string{"student_name", "admission_no", "class", "phone", "academic_year", "total_amount", "paid_amount", "remaining_amount", "next_due_date", "days_overdue"}); err != nil {
		return err
	}
	for _, d := range defaulters {
		record := []string{
			d.StudentName,
			d.AdmissionNo,
			d.ClassName,
			d.Phone,
			d.AcademicYear,
			d.TotalAmount.StringFixed(2),
			d.PaidAmount.StringFixed(2),
			d.RemainingAmount.StringFixed(2),
			d.NextDueDate.Format(dateLayout),
			strconv.Itoa(d.DaysOverdue),
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func defaulterFilter(c echo.Context) (services.DefaulterFilter, error) {
	filter := services.DefaulterFilter{SchoolID: middleware.SchoolID(c)}

	if v := c.QueryParam("class_id"); v != "" {
		id, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return filter, echo.NewHTTPError(http.StatusBadRequest, "class_id must be an integer")
		}
		filter.ClassID = uint(id)
	}
	if v := c.QueryParam("min_days_overdue"); v != "" {
		days, err := strconv.Atoi(v)
		if err != nil || days < 0 {
			return filter, echo.NewHTTPError(http.StatusBadRequest, "min_days_overdue must be a non-negative integer")
		}
		filter.MinDaysOver = days
	}
	return filter, nil
}

func analyticsWindow(c echo.Context) (time.Time, time.Time, error) {
	now := time.Now()
	to := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	from := to.AddDate(0, 0, -(defaultWindowDays - 1))

	if v := c.QueryParam("from"); v != "" {
		parsed, ok := parseDate(v)
		if !ok {
			return from, to, echo.NewHTTPError(http.StatusBadRequest, "from must be formatted as YYYY-MM-DD")
		}
		from = parsed
	}
	if v := c.QueryParam("to"); v != "" {
		parsed, ok := parseDate(v)
		if !ok {
			return from, to, echo.NewHTTPError(http.StatusBadRequest, "to must be formatted as YYYY-MM-DD")
		}
		to = parsed
	}
	if to.Before(from) {
		return from, to, echo.NewHTTPError(http.StatusBadRequest, "to must not precede from")
	}
	return from, to, nil
}
