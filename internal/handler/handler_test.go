package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dan9191/decembrrr/internal/clock"
	"github.com/Dan9191/decembrrr/internal/config"
	"github.com/Dan9191/decembrrr/internal/middleware"
	"github.com/Dan9191/decembrrr/internal/models"
	"github.com/Dan9191/decembrrr/internal/repository/memory"
	"github.com/Dan9191/decembrrr/internal/service"
	"github.com/Dan9191/decembrrr/internal/utils"
)

type testEnv struct {
	router  *mux.Router
	store   *memory.Store
	cfg     *config.Config
	class   models.Class
	members []models.Member
}

func newEnv(t *testing.T) *testEnv {
	t.Helper()
	clk := clock.Fixed{T: time.Date(2024, 12, 4, 10, 0, 0, 0, time.UTC)}
	store := memory.NewStore(clk)
	class := store.AddClass(models.Class{
		Name:           "BSCS 3A",
		DailyAmount:    decimal.NewFromInt(10),
		CollectionDays: []int{1, 2, 3, 4, 5},
		DateInitiated:  time.Date(2024, 12, 2, 0, 0, 0, 0, time.UTC),
		Timezone:       "UTC",
	})
	members := []models.Member{
		store.AddMember(models.Member{ClassID: class.ID, StudentID: "2021-0001", Name: "Ana", IsActive: true}),
		store.AddMember(models.Member{ClassID: class.ID, StudentID: "2021-0002", Name: "Ben", IsActive: true}),
	}

	log := logrus.New()
	log.SetOutput(io.Discard)
	cfg := &config.Config{JWTSecret: "secret", QRSecret: "qr", JobSecret: "job", DefaultTimezone: "UTC"}
	h := NewHandler(service.NewService(store, log, cfg, clk), log, cfg)
	r := mux.NewRouter()
	h.Routes(r)
	return &testEnv{router: r, store: store, cfg: cfg, class: class, members: members}
}

func (e *testEnv) token(t *testing.T, role string, subject uuid.UUID) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, middleware.Claims{
		Role:    role,
		ClassID: e.class.ID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject.String(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	s, err := tok.SignedString([]byte(e.cfg.JWTSecret))
	require.NoError(t, err)
	return s
}

func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body map[string]errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body["error"]
}

func TestHealth(t *testing.T) {
	env := newEnv(t)
	rec := env.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestRecordDepositEndpoint(t *testing.T) {
	env := newEnv(t)
	path := "/classes/" + env.class.ID.String() + "/deposits"
	president := env.token(t, middleware.RolePresident, uuid.New())

	rec := env.do(t, http.MethodPost, path, president, map[string]interface{}{
		"member_id": env.members[0].ID, "amount": "30", "note": "cash",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var tx models.Transaction
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tx))
	assert.Equal(t, "30", tx.BalanceAfter.String())

	rec = env.do(t, http.MethodPost, path, env.token(t, middleware.RoleStudent, env.members[0].ID), map[string]interface{}{
		"member_id": env.members[0].ID, "amount": "30",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodPost, path, president, map[string]interface{}{
		"member_id": env.members[0].ID, "amount": "0",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_AMOUNT", errorCode(t, rec).Code)

	env.store.RejectInserts(errors.New("permission denied"))
	rec = env.do(t, http.MethodPost, path, president, map[string]interface{}{
		"member_id": env.members[0].ID, "amount": "5",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	body := errorCode(t, rec)
	assert.Equal(t, "RECORD_FAILED", body.Code)
	assert.NotEmpty(t, body.Hints)
	assert.Empty(t, body.Detail)
}

func TestErrorDetailOnlyInDebug(t *testing.T) {
	env := newEnv(t)
	env.cfg.Debug = true
	env.store.RejectInserts(errors.New("permission denied"))
	rec := env.do(t, http.MethodPost, "/classes/"+env.class.ID.String()+"/deposits",
		env.token(t, middleware.RolePresident, uuid.New()),
		map[string]interface{}{"member_id": env.members[0].ID, "amount": "5"})
	assert.Contains(t, errorCode(t, rec).Detail, "permission denied")
}

func TestNoClassEndpoints(t *testing.T) {
	env := newEnv(t)
	base := "/classes/" + env.class.ID.String() + "/no-class"
	president := env.token(t, middleware.RolePresident, uuid.New())

	rec := env.do(t, http.MethodPost, base, president, models.NewNoClassDate{Date: "2024-12-05", Reason: "Holiday"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var res models.MarkResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))

	rec = env.do(t, http.MethodPost, base, president, models.NewNoClassDate{Date: "2024-12-05"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "DUPLICATE_EXCEPTION", errorCode(t, rec).Code)

	rec = env.do(t, http.MethodPost, base, president, models.NewNoClassDate{Date: "05-12-2024"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, base, env.token(t, middleware.RoleStudent, env.members[1].ID), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	var list []models.NoClassDate
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list, 1)

	rec = env.do(t, http.MethodDelete, base+"/"+res.Exception.ID.String(), president, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodDelete, base+"/"+res.Exception.ID.String(), president, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestReportAndCalendarEndpoints(t *testing.T) {
	env := newEnv(t)
	base := "/classes/" + env.class.ID.String()
	student := env.token(t, middleware.RoleStudent, env.members[0].ID)

	rec := env.do(t, http.MethodGet, base+"/reports/weekly?date=2024-12-02", student, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var report models.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, "100", report.SummaryExpected.String())

	rec = env.do(t, http.MethodGet, base+"/reports/yearly", student, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, base+"/calendar/2024-11-25", student, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var day models.CalendarDay
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &day))
	assert.Equal(t, "before_start", day.Status)

	rec = env.do(t, http.MethodGet, base+"/heatmap?year=2024&month=13", student, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, base+"/heatmap?year=2024&month=12", student, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, base+"/heatmap", student, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var hm models.Heatmap
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &hm))
	assert.Equal(t, 2024, hm.Year)
	assert.Equal(t, 12, hm.Month)
}

func TestStudentSeesOnlyOwnRecords(t *testing.T) {
	env := newEnv(t)
	base := "/classes/" + env.class.ID.String() + "/members/"
	student := env.token(t, middleware.RoleStudent, env.members[0].ID)

	rec := env.do(t, http.MethodGet, base+env.members[0].ID.String()+"/stats", student, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, base+env.members[1].ID.String()+"/transactions", student, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodGet, base+"not-an-id/stats", student, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDailyDeductionJob(t *testing.T) {
	env := newEnv(t)
	req := httptest.NewRequest(http.MethodPost, "/jobs/daily-deduction?date=2024-12-03", nil)
	req.Header.Set("X-Job-Secret", "job")
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var run models.DeductionRun
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &run))
	assert.Equal(t, 2, run.Processed)
	assert.Equal(t, 2, env.store.LedgerSize())
}

func TestScanEndpointIsClassScoped(t *testing.T) {
	env := newEnv(t)
	other := env.store.AddClass(models.Class{
		Name:           "BSIT 2B",
		DailyAmount:    decimal.NewFromInt(5),
		CollectionDays: []int{1, 3, 5},
		DateInitiated:  time.Date(2024, 12, 2, 0, 0, 0, 0, time.UTC),
		Timezone:       "UTC",
	})
	env.store.AddMember(models.Member{
		ClassID: other.ID, StudentID: "2022-0001", Name: "Dee", Balance: decimal.NewFromInt(40), IsActive: true,
	})
	president := env.token(t, middleware.RolePresident, uuid.New())

	scan := func(studentID string) models.StudentLookup {
		token, err := utils.GenerateStudentToken(studentID, "qr")
		require.NoError(t, err)
		rec := env.do(t, http.MethodPost, "/scan", president, models.ScanRequest{Token: token})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var res models.StudentLookup
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
		return res
	}

	own := scan("2021-0001")
	assert.True(t, own.InClass)
	assert.Equal(t, "Ana", own.Name)
	assert.Equal(t, env.members[0].ID, own.MemberID)

	stranger := scan("2022-0001")
	assert.True(t, stranger.Found)
	assert.False(t, stranger.InClass)
	assert.Empty(t, stranger.Name)
	assert.Equal(t, uuid.Nil, stranger.MemberID)
	assert.True(t, stranger.Balance.IsZero())

	rec := env.do(t, http.MethodPost, "/scan", env.token(t, middleware.RoleStudent, env.members[0].ID),
		models.ScanRequest{Token: "x"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
