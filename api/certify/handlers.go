package certify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"ExpenseCertify/api"
	"ExpenseCertify/api/constants"
	"ExpenseCertify/api/utils"
	"ExpenseCertify/internal/config"
	"ExpenseCertify/internal/logger"
	"ExpenseCertify/internal/model"
	"ExpenseCertify/internal/orchestrator"
	"ExpenseCertify/internal/refdata"
	"ExpenseCertify/internal/runlock"
	"ExpenseCertify/internal/store"
)

// Engine is the part of orchestrator.Engine the handlers drive.
type Engine interface {
	Run(ctx context.Context, up orchestrator.Upload) (orchestrator.RunSummary, error)
	MarkAccepted(ctx context.Context, id int64, reviewer string) (model.AcceptedFingerprint, error)
	RecordAccepted(ctx context.Context, rowJSON []byte, reason, reviewer string) (model.AcceptedFingerprint, error)
	SetCorrectionStatus(ctx context.Context, id int64, status, by string) error
	ReviewSuspicious(ctx context.Context, id int64, status, comment, reviewer string) error
	DeleteRun(ctx context.Context, runID uuid.UUID, by string) error
}

// Store is the read side and curator surface of store.Store.
type Store interface {
	Ping(ctx context.Context) error
	ListRuns(ctx context.Context, limit, offset int) ([]model.Run, error)
	CountRuns(ctx context.Context) (int, error)
	GetRun(ctx context.Context, runID uuid.UUID) (model.Run, error)
	GetReport(ctx context.Context, runID uuid.UUID) ([]byte, string, error)
	GetExceptions(ctx context.Context, runID uuid.UUID) ([]model.Exception, error)
	GetException(ctx context.Context, id int64) (model.Exception, error)
	DepartmentSummary(ctx context.Context, runID uuid.UUID) ([]model.DepartmentStat, error)
	UserPerformance(ctx context.Context, runID uuid.UUID) ([]model.UserPerformance, error)
	HistoricalFingerprints(ctx context.Context) (map[string]struct{}, error)
	AcceptedFingerprints(ctx context.Context) (map[string]struct{}, error)
	ContainsAccepted(ctx context.Context, combined string) (bool, error)

	Rules(ctx context.Context) ([]model.SuspiciousRule, error)
	UpsertRule(ctx context.Context, r model.SuspiciousRule) (model.SuspiciousRule, error)
	DeleteRule(ctx context.Context, subDepartment, column string) error
	ListOptions(ctx context.Context, column string) ([]model.SuspiciousOption, error)
	AddOption(ctx context.Context, column, value string) (model.SuspiciousOption, error)
	DeleteOption(ctx context.Context, id int64) error
	ListSuspicious(ctx context.Context, f store.SuspiciousFilter) ([]model.SuspiciousEntry, error)
}

// Reloader refreshes the reference catalog on demand.
type Reloader interface {
	Reload() (*refdata.Bundle, error)
}

// Handler serves the certification API.
type Handler struct {
	engine Engine
	store  Store
	refs   refdata.Source
	reload Reloader
}

// NewHandler wires the handlers. reload may be nil.
func NewHandler(engine Engine, st Store, refs refdata.Source, reload Reloader) *Handler {
	return &Handler{engine: engine, store: st, refs: refs, reload: reload}
}

// fail maps engine and store errors onto HTTP statuses.
func fail(w http.ResponseWriter, err error) {
	var te *model.TransitionError
	switch {
	case orchestrator.IsInputError(err):
		api.RespondWithError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrNotFound):
		api.RespondWithError(w, http.StatusNotFound, constants.ErrNotFound)
	case errors.Is(err, store.ErrInvalidTransition), errors.As(err, &te):
		api.RespondWithError(w, http.StatusConflict, err.Error())
	case errors.Is(err, runlock.ErrBusy):
		api.RespondWithError(w, http.StatusServiceUnavailable, constants.ErrRunBusy)
	case errors.Is(err, refdata.ErrNotLoaded):
		api.RespondWithError(w, http.StatusServiceUnavailable, constants.ErrReferenceData)
	default:
		logger.Component("certify").WithError(err).Error("request failed")
		api.RespondWithError(w, http.StatusInternalServerError, constants.ErrInternal)
	}
}

func runID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		api.RespondWithError(w, http.StatusBadRequest, constants.ErrInvalidRunID)
		return uuid.Nil, false
	}
	return id, true
}

func intID(w http.ResponseWriter, raw string) (int64, bool) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		api.RespondWithError(w, http.StatusBadRequest, constants.ErrInvalidID)
		return 0, false
	}
	return id, true
}

func parseUploadTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.ParseInLocation(constants.DateTimeFormat, s, config.Location())
}

// splitTeam accepts repeated team fields and comma-separated lists.
func splitTeam(values []string) []string {
	var out []string
	for _, v := range values {
		for _, name := range strings.Split(v, ",") {
			if name = strings.TrimSpace(name); name != "" {
				out = append(out, name)
			}
		}
	}
	return out
}

// Health handles GET /health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{"database": "ok", "reference": "ok"}
	healthy := true
	if err := h.store.Ping(r.Context()); err != nil {
		status["database"] = err.Error()
		healthy = false
	}
	if b, err := h.refs.Bundle(); err != nil {
		status["reference"] = err.Error()
		healthy = false
	} else if warn := b.Warnings(); len(warn) > 0 {
		status["reference_warnings"] = len(warn)
	}
	code := http.StatusOK
	if !healthy {
		code = http.StatusServiceUnavailable
	}
	api.RespondWithStatus(w, code, healthy, "", status)
}

// UploadRun handles POST /certify/runs.
func (h *Handler) UploadRun(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, constants.MaxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			api.RespondWithError(w, http.StatusRequestEntityTooLarge, constants.ErrFileTooLarge)
			return
		}
		api.RespondWithError(w, http.StatusBadRequest, constants.ErrInvalidRequestBody)
		return
	}
	form := UploadForm{
		UserName:   strings.TrimSpace(r.FormValue("user_name")),
		Team:       splitTeam(r.MultipartForm.Value["team"]),
		Role:       strings.TrimSpace(r.FormValue("role")),
		UploadTime: r.FormValue("upload_time"),
	}
	if !check(w, form) {
		return
	}
	uploadTime, err := parseUploadTime(form.UploadTime)
	if err != nil {
		api.RespondWithError(w, http.StatusBadRequest, constants.ErrInvalidUploadTime)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		api.RespondWithError(w, http.StatusBadRequest, constants.ErrFileRequired)
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		api.RespondWithError(w, http.StatusBadRequest, constants.ErrInvalidRequestBody)
		return
	}

	summary, err := h.engine.Run(r.Context(), orchestrator.Upload{
		Filename:   filepath.Base(header.Filename),
		Data:       data,
		UserName:   form.UserName,
		Team:       form.Team,
		Role:       form.Role,
		UploadTime: uploadTime,
	})
	if err != nil {
		fail(w, err)
		return
	}
	api.RespondWithStatus(w, http.StatusCreated, true, "", summary)
}

// ListRuns handles GET /certify/runs.
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	page, err := utils.ExtractPagination(r)
	if err != nil {
		api.RespondWithError(w, http.StatusBadRequest, constants.ErrInvalidPagination)
		return
	}
	total, err := h.store.CountRuns(r.Context())
	if err != nil {
		fail(w, err)
		return
	}
	runs, err := h.store.ListRuns(r.Context(), page.Limit, page.Offset)
	if err != nil {
		fail(w, err)
		return
	}
	page.SetPaginationStats(total)
	api.RespondWithPayload(w, true, "", map[string]interface{}{
		"runs":       runs,
		"pagination": page,
	})
}

// GetRun handles GET /certify/runs/{id}.
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	id, ok := runID(w, r)
	if !ok {
		return
	}
	run, err := h.store.GetRun(r.Context(), id)
	if err != nil {
		fail(w, err)
		return
	}
	api.RespondWithPayload(w, true, "", run)
}

// DeleteRun handles DELETE /certify/runs/{id}.
func (h *Handler) DeleteRun(w http.ResponseWriter, r *http.Request) {
	id, ok := runID(w, r)
	if !ok {
		return
	}
	if err := h.engine.DeleteRun(r.Context(), id, r.URL.Query().Get("by")); err != nil {
		fail(w, err)
		return
	}
	api.RespondWithResult(w, true, "")
}

// RunExceptions handles GET /certify/runs/{id}/exceptions.
func (h *Handler) RunExceptions(w http.ResponseWriter, r *http.Request) {
	id, ok := runID(w, r)
	if !ok {
		return
	}
	rows, err := h.store.GetExceptions(r.Context(), id)
	if err != nil {
		fail(w, err)
		return
	}
	api.RespondWithPayload(w, true, "", rows)
}

// RunDepartments handles GET /certify/runs/{id}/departments.
func (h *Handler) RunDepartments(w http.ResponseWriter, r *http.Request) {
	id, ok := runID(w, r)
	if !ok {
		return
	}
	rows, err := h.store.DepartmentSummary(r.Context(), id)
	if err != nil {
		fail(w, err)
		return
	}
	api.RespondWithPayload(w, true, "", rows)
}

// RunUsers handles GET /certify/runs/{id}/users.
func (h *Handler) RunUsers(w http.ResponseWriter, r *http.Request) {
	id, ok := runID(w, r)
	if !ok {
		return
	}
	rows, err := h.store.UserPerformance(r.Context(), id)
	if err != nil {
		fail(w, err)
		return
	}
	api.RespondWithPayload(w, true, "", rows)
}

// RunReport handles GET /certify/runs/{id}/report.
func (h *Handler) RunReport(w http.ResponseWriter, r *http.Request) {
	id, ok := runID(w, r)
	if !ok {
		return
	}
	data, filename, err := h.store.GetReport(r.Context(), id)
	if err != nil {
		fail(w, err)
		return
	}
	name := strings.TrimSuffix(filename, filepath.Ext(filename)) + "_report.xlsx"
	w.Header().Set(constants.ContentType, constants.ContentTypeXLSX)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	_, _ = w.Write(data)
}

// GetException handles GET /certify/exceptions/{id}.
func (h *Handler) GetException(w http.ResponseWriter, r *http.Request) {
	id, ok := intID(w, mux.Vars(r)["id"])
	if !ok {
		return
	}
	e, err := h.store.GetException(r.Context(), id)
	if err != nil {
		fail(w, err)
		return
	}
	api.RespondWithPayload(w, true, "", e)
}

// AcceptException handles POST /certify/exceptions/{id}/accept.
func (h *Handler) AcceptException(w http.ResponseWriter, r *http.Request) {
	id, ok := intID(w, mux.Vars(r)["id"])
	if !ok {
		return
	}
	var req AcceptRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	key, err := h.engine.MarkAccepted(r.Context(), id, req.Reviewer)
	if err != nil {
		fail(w, err)
		return
	}
	api.RespondWithPayload(w, true, "", key)
}

// SetCorrection handles PATCH /certify/exceptions/{id}/correction.
func (h *Handler) SetCorrection(w http.ResponseWriter, r *http.Request) {
	id, ok := intID(w, mux.Vars(r)["id"])
	if !ok {
		return
	}
	var req CorrectionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.engine.SetCorrectionStatus(r.Context(), id, req.Status, req.By); err != nil {
		fail(w, err)
		return
	}
	api.RespondWithResult(w, true, "")
}

// RecordAccepted handles POST /certify/accepted.
func (h *Handler) RecordAccepted(w http.ResponseWriter, r *http.Request) {
	var req RecordAcceptedRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	key, err := h.engine.RecordAccepted(r.Context(), req.Row, req.Reason, req.Reviewer)
	if err != nil {
		fail(w, err)
		return
	}
	api.RespondWithStatus(w, http.StatusCreated, true, "", key)
}

// IsAccepted handles GET /certify/accepted/{hash}.
func (h *Handler) IsAccepted(w http.ResponseWriter, r *http.Request) {
	hash := strings.ToLower(strings.TrimSpace(mux.Vars(r)["hash"]))
	ok, err := h.store.ContainsAccepted(r.Context(), hash)
	if err != nil {
		fail(w, err)
		return
	}
	api.RespondWithPayload(w, true, "", map[string]interface{}{"combined_hash": hash, "accepted": ok})
}

// Oracles handles GET /certify/oracles: sizes of the suppression sets and the
// loaded reference data.
func (h *Handler) Oracles(w http.ResponseWriter, r *http.Request) {
	historical, err := h.store.HistoricalFingerprints(r.Context())
	if err != nil {
		fail(w, err)
		return
	}
	accepted, err := h.store.AcceptedFingerprints(r.Context())
	if err != nil {
		fail(w, err)
		return
	}
	b, err := h.refs.Bundle()
	if err != nil {
		fail(w, err)
		return
	}
	api.RespondWithPayload(w, true, "", map[string]interface{}{
		"transaction_fingerprints": len(historical),
		"accepted_fingerprints":    len(accepted),
		"ledger_pairs":             b.Ledger.Len(),
		"immunity_pairs":           b.Immunity.Len(),
		"reference_lists":          b.Catalog.Keys(),
		"reference_loaded_at":      b.LoadedAt,
		"reference_warnings":       b.Warnings(),
	})
}

// ReloadReference handles POST /certify/reference/reload.
func (h *Handler) ReloadReference(w http.ResponseWriter, r *http.Request) {
	if h.reload == nil {
		api.RespondWithError(w, http.StatusServiceUnavailable, constants.ErrServiceUnavailable)
		return
	}
	b, err := h.reload.Reload()
	if err != nil {
		logger.Component("certify").WithError(err).Error("reference reload failed")
		api.RespondWithError(w, http.StatusInternalServerError, constants.ErrReferenceReload)
		return
	}
	logger.Audit("reference catalog reloaded on request")
	api.RespondWithPayload(w, true, "", map[string]interface{}{
		"reference_loaded_at": b.LoadedAt,
		"reference_warnings":  b.Warnings(),
	})
}
