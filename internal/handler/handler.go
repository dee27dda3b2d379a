package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/Dan9191/decembrrr/internal/apperr"
	"github.com/Dan9191/decembrrr/internal/config"
	"github.com/Dan9191/decembrrr/internal/middleware"
	"github.com/Dan9191/decembrrr/internal/models"
	"github.com/Dan9191/decembrrr/internal/service"
)

type Handler struct {
	svc *service.Service
	log *logrus.Logger
	cfg *config.Config
}

func NewHandler(svc *service.Service, log *logrus.Logger, cfg *config.Config) *Handler {
	return &Handler{svc: svc, log: log, cfg: cfg}
}

// Routes registers every endpoint on r
func (h *Handler) Routes(r *mux.Router) {
	r.HandleFunc("/health", h.Health).Methods(http.MethodGet)

	jobs := r.PathPrefix("/jobs").Subrouter()
	jobs.Use(middleware.RequireJobSecret(h.cfg))
	jobs.HandleFunc("/daily-deduction", h.RunDailyDeduction).Methods(http.MethodPost)

	scan := r.PathPrefix("/scan").Subrouter()
	scan.Use(middleware.AuthMiddleware(h.cfg))
	scan.Handle("", middleware.RequirePresident(http.HandlerFunc(h.ScanStudent))).Methods(http.MethodPost)

	class := r.PathPrefix("/classes/{classID}").Subrouter()
	class.Use(middleware.AuthMiddleware(h.cfg), middleware.ClassScope)
	president := func(fn http.HandlerFunc) http.Handler { return middleware.RequirePresident(fn) }

	class.HandleFunc("", h.GetClass).Methods(http.MethodGet)
	class.Handle("", president(h.UpdateClass)).Methods(http.MethodPut)
	class.HandleFunc("/summary", h.FundSummary).Methods(http.MethodGet)
	class.HandleFunc("/members", h.ListMembers).Methods(http.MethodGet)
	class.HandleFunc("/members/{memberID}/stats", h.MemberStats).Methods(http.MethodGet)
	class.HandleFunc("/members/{memberID}/transactions", h.MemberTransactions).Methods(http.MethodGet)
	class.Handle("/deposits", president(h.RecordDeposit)).Methods(http.MethodPost)
	class.HandleFunc("/reports/{mode}", h.Report).Methods(http.MethodGet)
	class.HandleFunc("/heatmap", h.Heatmap).Methods(http.MethodGet)
	class.HandleFunc("/calendar/{date}", h.ClassifyDate).Methods(http.MethodGet)
	class.HandleFunc("/no-class", h.ListNoClass).Methods(http.MethodGet)
	class.Handle("/no-class", president(h.MarkNoClass)).Methods(http.MethodPost)
	class.Handle("/no-class/{exceptionID}", president(h.UnmarkNoClass)).Methods(http.MethodDelete)
	class.Handle("/holidays/import", president(h.ImportHolidays)).Methods(http.MethodPost)
}

// Health reports liveness
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetClass returns the class settings
func (h *Handler) GetClass(w http.ResponseWriter, r *http.Request) {
	classID, ok := h.pathID(w, r, "classID")
	if !ok {
		return
	}
	class, err := h.svc.GetClass(r.Context(), classID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, class)
}

// UpdateClass applies new class settings
func (h *Handler) UpdateClass(w http.ResponseWriter, r *http.Request) {
	classID, ok := h.pathID(w, r, "classID")
	if !ok {
		return
	}
	var req models.UpdateClass
	if !h.decode(w, r, &req) {
		return
	}
	class, err := h.svc.UpdateClass(r.Context(), classID, req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, class)
}

// FundSummary returns the fund totals
func (h *Handler) FundSummary(w http.ResponseWriter, r *http.Request) {
	classID, ok := h.pathID(w, r, "classID")
	if !ok {
		return
	}
	sum, err := h.svc.FundSummary(r.Context(), classID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// ListMembers returns the class members
func (h *Handler) ListMembers(w http.ResponseWriter, r *http.Request) {
	classID, ok := h.pathID(w, r, "classID")
	if !ok {
		return
	}
	members, err := h.svc.ListMembers(r.Context(), classID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if members == nil {
		members = []models.Member{}
	}
	writeJSON(w, http.StatusOK, members)
}

// MemberStats returns expected vs deposited totals of a member
func (h *Handler) MemberStats(w http.ResponseWriter, r *http.Request) {
	classID, ok := h.pathID(w, r, "classID")
	if !ok {
		return
	}
	memberID, ok := h.pathID(w, r, "memberID")
	if !ok || !h.ownProfile(w, r, memberID) {
		return
	}
	stats, err := h.svc.MemberStats(r.Context(), classID, memberID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// MemberTransactions returns the ledger of a member
func (h *Handler) MemberTransactions(w http.ResponseWriter, r *http.Request) {
	classID, ok := h.pathID(w, r, "classID")
	if !ok {
		return
	}
	memberID, ok := h.pathID(w, r, "memberID")
	if !ok || !h.ownProfile(w, r, memberID) {
		return
	}
	txs, err := h.svc.MemberTransactions(r.Context(), classID, memberID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if txs == nil {
		txs = []models.Transaction{}
	}
	writeJSON(w, http.StatusOK, txs)
}

// RecordDeposit records a cash payment
func (h *Handler) RecordDeposit(w http.ResponseWriter, r *http.Request) {
	classID, ok := h.pathID(w, r, "classID")
	if !ok {
		return
	}
	var req models.NewDeposit
	if !h.decode(w, r, &req) {
		return
	}
	tx, err := h.svc.RecordDeposit(r.Context(), classID, req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, tx)
}

// Report returns a compliance window
func (h *Handler) Report(w http.ResponseWriter, r *http.Request) {
	classID, ok := h.pathID(w, r, "classID")
	if !ok {
		return
	}
	mode := models.ViewMode(mux.Vars(r)["mode"])
	report, err := h.svc.Report(r.Context(), classID, mode, r.URL.Query().Get("date"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// Heatmap returns the payer percentages of a month, the current one by default
func (h *Handler) Heatmap(w http.ResponseWriter, r *http.Request) {
	classID, ok := h.pathID(w, r, "classID")
	if !ok {
		return
	}
	year, err := queryInt(r, "year", 0)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	month, err := queryInt(r, "month", 0)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	hm, err := h.svc.Heatmap(r.Context(), classID, year, time.Month(month))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, hm)
}

// ClassifyDate returns the status of one date
func (h *Handler) ClassifyDate(w http.ResponseWriter, r *http.Request) {
	classID, ok := h.pathID(w, r, "classID")
	if !ok {
		return
	}
	day, err := h.svc.ClassifyDate(r.Context(), classID, mux.Vars(r)["date"])
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, day)
}

// ListNoClass returns the no-class dates
func (h *Handler) ListNoClass(w http.ResponseWriter, r *http.Request) {
	classID, ok := h.pathID(w, r, "classID")
	if !ok {
		return
	}
	list, err := h.svc.ListNoClass(r.Context(), classID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if list == nil {
		list = []models.NoClassDate{}
	}
	writeJSON(w, http.StatusOK, list)
}

// MarkNoClass marks a date as no class
func (h *Handler) MarkNoClass(w http.ResponseWriter, r *http.Request) {
	classID, ok := h.pathID(w, r, "classID")
	if !ok {
		return
	}
	var req models.NewNoClassDate
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.svc.MarkNoClass(r.Context(), classID, req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// UnmarkNoClass removes a no-class date
func (h *Handler) UnmarkNoClass(w http.ResponseWriter, r *http.Request) {
	classID, ok := h.pathID(w, r, "classID")
	if !ok {
		return
	}
	exceptionID, ok := h.pathID(w, r, "exceptionID")
	if !ok {
		return
	}
	if err := h.svc.UnmarkNoClass(r.Context(), classID, exceptionID); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ImportHolidays marks the public holidays of a year, the current one by default
func (h *Handler) ImportHolidays(w http.ResponseWriter, r *http.Request) {
	classID, ok := h.pathID(w, r, "classID")
	if !ok {
		return
	}
	year, err := queryInt(r, "year", 0)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	res, err := h.svc.ImportHolidays(r.Context(), classID, year)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ScanStudent resolves a scanned QR code
func (h *Handler) ScanStudent(w http.ResponseWriter, r *http.Request) {
	var req models.ScanRequest
	if !h.decode(w, r, &req) {
		return
	}
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		h.writeError(w, r, apperr.Unauthenticated(nil, "missing session"))
		return
	}
	classID, err := uuid.Parse(claims.ClassID)
	if err != nil {
		h.writeError(w, r, apperr.Forbidden("your session is not linked to a class"))
		return
	}
	res, err := h.svc.ScanStudent(r.Context(), classID, req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// RunDailyDeduction runs the deduction job for ?date=, defaulting to today
func (h *Handler) RunDailyDeduction(w http.ResponseWriter, r *http.Request) {
	var (
		run *models.DeductionRun
		err error
	)
	if date := r.URL.Query().Get("date"); date != "" {
		run, err = h.svc.RunDailyDeduction(r.Context(), date)
	} else {
		run, err = h.svc.RunDailyDeductionToday(r.Context())
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// ownProfile lets students read only their own member records.
func (h *Handler) ownProfile(w http.ResponseWriter, r *http.Request, memberID uuid.UUID) bool {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok || claims.Role == middleware.RolePresident || claims.Subject == memberID.String() {
		return true
	}
	h.writeError(w, r, apperr.Forbidden("students can only view their own records").
		WithHints("Open your own profile"))
	return false
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)[name])
	if err != nil {
		h.writeError(w, r, apperr.Validation("INVALID_ID", err, "%s is not a valid id", name))
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		h.writeError(w, r, apperr.Validation("INVALID_BODY", err, "request body is not valid JSON"))
		return false
	}
	return true
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperr.Validation("INVALID_QUERY", err, "%s must be a number", key)
	}
	return n, nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Code    string   `json:"code"`
	Message string   `json:"message"`
	Hints   []string `json:"hints,omitempty"`
	Detail  string   `json:"detail,omitempty"`
}

// statusOf maps an error kind to its HTTP status.
func statusOf(e *apperr.Error) int {
	if errors.Is(e, apperr.ErrDuplicateException) {
		return http.StatusConflict
	}
	switch e.Kind {
	case apperr.KindValidation, apperr.KindInvalidArgument:
		return http.StatusBadRequest
	case apperr.KindAuthentication:
		return http.StatusUnauthorized
	case apperr.KindForbidden:
		return http.StatusForbidden
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindWriteFailure:
		return http.StatusUnprocessableEntity
	case apperr.KindNetwork:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	e := apperr.As(err)
	status := statusOf(e)
	entry := h.log.WithFields(logrus.Fields{
		"method": r.Method,
		"path":   r.URL.Path,
		"code":   e.Code,
		"kind":   e.Kind.String(),
	})
	if status >= http.StatusInternalServerError {
		entry.Errorf("Request failed: %v", err)
	} else {
		entry.Debugf("Request rejected: %v", err)
	}

	body := errorBody{Code: e.Code, Message: e.Message, Hints: e.Hints}
	if h.cfg.Debug {
		body.Detail = e.Detail()
	}
	writeJSON(w, status, map[string]errorBody{"error": body})
}
