package certify

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"ExpenseCertify/api"
	"ExpenseCertify/api/constants"
	"ExpenseCertify/internal/logger"
	"ExpenseCertify/internal/model"
	"ExpenseCertify/internal/store"
)

// ListRules handles GET /certify/suspicious/rules.
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	rules, err := h.store.Rules(r.Context())
	if err != nil {
		fail(w, err)
		return
	}
	if sub := strings.TrimSpace(r.URL.Query().Get("sub_department")); sub != "" {
		filtered := rules[:0]
		for _, rule := range rules {
			if strings.EqualFold(rule.SubDepartment, sub) {
				filtered = append(filtered, rule)
			}
		}
		rules = filtered
	}
	api.RespondWithPayload(w, true, "", rules)
}

// PutRule handles PUT /certify/suspicious/rules. The (sub_department,
// rule_column) pair is the key; values are replaced.
func (h *Handler) PutRule(w http.ResponseWriter, r *http.Request) {
	var req RuleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	rule, err := h.store.UpsertRule(r.Context(), model.SuspiciousRule{
		SubDepartment: strings.TrimSpace(req.SubDepartment),
		Column:        strings.TrimSpace(req.Column),
		Values:        req.Values,
	})
	if err != nil {
		fail(w, err)
		return
	}
	logger.Audit("suspicious rule %s/%s set to %d value(s)", rule.SubDepartment, rule.Column, len(rule.Values))
	api.RespondWithPayload(w, true, "", rule)
}

// DeleteRule handles DELETE /certify/suspicious/rules?sub_department=&rule_column=.
func (h *Handler) DeleteRule(w http.ResponseWriter, r *http.Request) {
	key := RuleKey{
		SubDepartment: strings.TrimSpace(r.URL.Query().Get("sub_department")),
		Column:        strings.TrimSpace(r.URL.Query().Get("rule_column")),
	}
	if !check(w, key) {
		return
	}
	if err := h.store.DeleteRule(r.Context(), key.SubDepartment, key.Column); err != nil {
		fail(w, err)
		return
	}
	logger.Audit("suspicious rule %s/%s deleted", key.SubDepartment, key.Column)
	api.RespondWithResult(w, true, "")
}

// ListOptions handles GET /certify/suspicious/options[?rule_column=].
func (h *Handler) ListOptions(w http.ResponseWriter, r *http.Request) {
	opts, err := h.store.ListOptions(r.Context(), strings.TrimSpace(r.URL.Query().Get("rule_column")))
	if err != nil {
		fail(w, err)
		return
	}
	api.RespondWithPayload(w, true, "", opts)
}

// AddOption handles POST /certify/suspicious/options.
func (h *Handler) AddOption(w http.ResponseWriter, r *http.Request) {
	var req OptionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	opt, err := h.store.AddOption(r.Context(), strings.TrimSpace(req.Column), strings.TrimSpace(req.Value))
	if err != nil {
		fail(w, err)
		return
	}
	api.RespondWithStatus(w, http.StatusCreated, true, "", opt)
}

// DeleteOption handles DELETE /certify/suspicious/options?id=.
func (h *Handler) DeleteOption(w http.ResponseWriter, r *http.Request) {
	id, ok := intID(w, r.URL.Query().Get("id"))
	if !ok {
		return
	}
	if err := h.store.DeleteOption(r.Context(), id); err != nil {
		fail(w, err)
		return
	}
	api.RespondWithResult(w, true, "")
}

// ListSuspicious handles GET /certify/suspicious/log[?run_id=&status=&user=].
func (h *Handler) ListSuspicious(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := store.SuspiciousFilter{
		Status: strings.TrimSpace(q.Get("status")),
		User:   strings.TrimSpace(q.Get("user")),
	}
	if raw := strings.TrimSpace(q.Get("run_id")); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			api.RespondWithError(w, http.StatusBadRequest, constants.ErrInvalidRunID)
			return
		}
		f.RunID = id
	}
	entries, err := h.store.ListSuspicious(r.Context(), f)
	if err != nil {
		fail(w, err)
		return
	}
	api.RespondWithPayload(w, true, "", entries)
}

// ReviewSuspicious handles POST /certify/suspicious/log/{id}/review.
func (h *Handler) ReviewSuspicious(w http.ResponseWriter, r *http.Request) {
	id, ok := intID(w, mux.Vars(r)["id"])
	if !ok {
		return
	}
	var req ReviewRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.engine.ReviewSuspicious(r.Context(), id, req.Status, req.Comment, req.Reviewer); err != nil {
		fail(w, err)
		return
	}
	api.RespondWithResult(w, true, "")
}
