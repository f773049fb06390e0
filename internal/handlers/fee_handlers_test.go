package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"schoolfees_app/internal/middleware"
	"schoolfees_app/internal/models"
	"schoolfees_app/internal/services"
)

type apiFixture struct {
	e       *echo.Echo
	db      *gorm.DB
	school  models.School
	class   models.Class
	student models.Student
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, services.AutoMigrate(db))

	school := models.School{Name: "Test School"}
	require.NoError(t, db.Create(&school).Error)
	class := models.Class{SchoolID: school.ID, Name: "Class 5", Section: "A"}
	require.NoError(t, db.Create(&class).Error)
	student := models.Student{SchoolID: school.ID, ClassID: class.ID, Name: "Asha", AdmissionNo: "ADM-1", Status: "active"}
	require.NoError(t, db.Create(&student).Error)

	receiptService := services.NewReceiptService(db)
	balanceService := services.NewBalanceService(db)
	scheduleService := services.NewScheduleService(db, nil, balanceService)
	paymentService := services.NewPaymentService(db, receiptService, balanceService, nil)
	defaulterService := services.NewDefaulterService(db)
	analyticsService := services.NewAnalyticsService(db)

	e := echo.New()
	e.Validator = NewRequestValidator()
	e.HTTPErrorHandler = middleware.CustomErrorHandler

	feeHandler := NewFeeHandler(scheduleService, paymentService, balanceService)
	reportHandler := NewReportHandler(defaulterService, analyticsService, paymentService)

	api := e.Group("/api/fees")
	api.Use(middleware.ActorContext())
	api.POST("/structures", feeHandler.CreateSchedule)
	api.GET("/structures/:id", feeHandler.GetSchedule)
	api.POST("/structures/:id", feeHandler.UpdateSchedule)
	api.POST("/payments", feeHandler.RecordPayment)
	api.GET("/payments/:id", feeHandler.GetPayment)
	api.POST("/payments/:id/refund", feeHandler.RefundPayment)
	api.GET("/students/:id/status", feeHandler.StudentStatus)
	api.GET("/defaulters", reportHandler.Defaulters)
	api.GET("/analytics", reportHandler.Analytics)
	api.GET("/export/payments", reportHandler.ExportPayments)

	return &apiFixture{e: e, db: db, school: school, class: class, student: student}
}

func (f *apiFixture) request(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set("X-School-ID", fmt.Sprint(f.school.ID))
	req.Header.Set("X-Actor-ID", "clerk-1")
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var envelope map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	return envelope
}

func (f *apiFixture) createSchedule(t *testing.T) uint {
	t.Helper()
	body := fmt.Sprintf(`{
		"class_id": %d,
		"academic_year": "2026-27",
		"total_amount": "50000.00",
		"tuition_fee": "40000.00",
		"installment_count": 1,
		"start_date": "%s"
	}`, f.class.ID, time.Now().AddDate(0, 1, 0).Format("2006-01-02"))

	rec := f.request(t, http.MethodPost, "/api/fees/structures", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	envelope := decodeEnvelope(t, rec)
	require.Equal(t, true, envelope["success"])
	data := envelope["data"].(map[string]interface{})
	return uint(data["id"].(float64))
}

func TestCreateAndGetSchedule(t *testing.T) {
	f := newAPIFixture(t)

	scheduleID := f.createSchedule(t)

	rec := f.request(t, http.MethodGet, fmt.Sprintf("/api/fees/structures/%d", scheduleID), "")
	require.Equal(t, http.StatusOK, rec.Code)

	envelope := decodeEnvelope(t, rec)
	data := envelope["data"].(map[string]interface{})
	require.Equal(t, "2026-27", data["academic_year"])
	require.Equal(t, "50000", fmt.Sprint(data["total_amount"]))
}

func TestCreateScheduleDuplicateReturns400(t *testing.T) {
	f := newAPIFixture(t)

	f.createSchedule(t)

	body := fmt.Sprintf(`{"class_id": %d, "academic_year": "2026-27", "total_amount": "60000.00", "start_date": "2026-10-01"}`, f.class.ID)
	rec := f.request(t, http.MethodPost, "/api/fees/structures", body)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	envelope := decodeEnvelope(t, rec)
	require.Equal(t, false, envelope["success"])
}

func TestMissingSchoolHeaderReturns400(t *testing.T) {
	f := newAPIFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/api/fees/defaulters", nil)
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPaymentLifecycleOverHTTP(t *testing.T) {
	f := newAPIFixture(t)
	scheduleID := f.createSchedule(t)

	body := fmt.Sprintf(`{"student_id": %d, "fee_schedule_id": %d, "amount": "20000.00", "mode": "cash"}`, f.student.ID, scheduleID)
	rec := f.request(t, http.MethodPost, "/api/fees/payments", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	envelope := decodeEnvelope(t, rec)
	payment := envelope["data"].(map[string]interface{})
	require.Equal(t, "completed", payment["status"])
	require.Contains(t, payment["receipt_no"], "RCP")
	require.Equal(t, "clerk-1", payment["collected_by"])
	paymentID := uint(payment["id"].(float64))

	// student status reflects the payment
	rec = f.request(t, http.MethodGet, fmt.Sprintf("/api/fees/students/%d/status", f.student.ID), "")
	require.Equal(t, http.StatusOK, rec.Code)
	envelope = decodeEnvelope(t, rec)
	status := envelope["data"].(map[string]interface{})
	balances := status["balances"].([]interface{})
	require.Len(t, balances, 1)
	balance := balances[0].(map[string]interface{})
	require.Equal(t, "20000", fmt.Sprint(balance["paid_amount"]))
	require.Equal(t, false, balance["is_fully_paid"])
	require.Len(t, status["payments"].([]interface{}), 1)

	// refund it
	rec = f.request(t, http.MethodPost, fmt.Sprintf("/api/fees/payments/%d/refund", paymentID), `{"reason": "duplicate entry"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	envelope = decodeEnvelope(t, rec)
	require.Equal(t, "refunded", envelope["data"].(map[string]interface{})["status"])

	// refunding twice fails
	rec = f.request(t, http.MethodPost, fmt.Sprintf("/api/fees/payments/%d/refund", paymentID), `{}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetMissingPaymentReturns404(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.request(t, http.MethodGet, "/api/fees/payments/9999", "")
	require.Equal(t, http.StatusNotFound, rec.Code)

	envelope := decodeEnvelope(t, rec)
	require.Equal(t, false, envelope["success"])
}

func TestRecordPaymentValidationOverHTTP(t *testing.T) {
	f := newAPIFixture(t)
	scheduleID := f.createSchedule(t)

	// missing mode fails validation
	body := fmt.Sprintf(`{"student_id": %d, "fee_schedule_id": %d, "amount": "100.00"}`, f.student.ID, scheduleID)
	rec := f.request(t, http.MethodPost, "/api/fees/payments", body)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	// negative amount is rejected by the ledger
	body = fmt.Sprintf(`{"student_id": %d, "fee_schedule_id": %d, "amount": "-100.00", "mode": "cash"}`, f.student.ID, scheduleID)
	rec = f.request(t, http.MethodPost, "/api/fees/payments", body)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDefaultersEndpoint(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.request(t, http.MethodGet, "/api/fees/defaulters", "")
	require.Equal(t, http.StatusOK, rec.Code)

	envelope := decodeEnvelope(t, rec)
	require.Equal(t, true, envelope["success"])
}

func TestExportPaymentsCSV(t *testing.T) {
	f := newAPIFixture(t)
	scheduleID := f.createSchedule(t)

	body := fmt.Sprintf(`{"student_id": %d, "fee_schedule_id": %d, "amount": "20000.00", "mode": "cash"}`, f.student.ID, scheduleID)
	rec := f.request(t, http.MethodPost, "/api/fees/payments", body)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = f.request(t, http.MethodGet, "/api/fees/export/payments", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Header().Get(echo.HeaderContentType), "text/csv")

	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	require.Len(t, lines, 2)
	require.Contains(t, lines[0], "receipt_no")
	require.Contains(t, lines[1], "20000.00")
	require.Contains(t, lines[1], "cash")
}
