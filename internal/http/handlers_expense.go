package http

import (
	"encoding/json"
	"net/http"
	"time"

	"simpleexpenses/internal/core"
	applog "simpleexpenses/internal/log"
)

type statusTotalJSON struct {
	TotalPence int64 `json:"totalPence"`
	Count      int   `json:"count"`
}

type derivedViewJSON struct {
	Expenses          []expenseJSON              `json:"expenses"`
	Summary           map[string]statusTotalJSON `json:"summary"`
	VisibleTotalPence int64                      `json:"visibleTotalPence"`
	VisibleCount      int                        `json:"visibleCount"`
}

func viewToWire(v core.DerivedView) derivedViewJSON {
	return derivedViewJSON{
		Expenses: toWireList(v.Expenses),
		Summary: map[string]statusTotalJSON{
			"submitted": {TotalPence: v.Summary.Submitted.Total.Pence, Count: v.Summary.Submitted.Count},
			"approved":  {TotalPence: v.Summary.Approved.Total.Pence, Count: v.Summary.Approved.Count},
			"paid":      {TotalPence: v.Summary.Paid.Total.Pence, Count: v.Summary.Paid.Count},
		},
		VisibleTotalPence: v.VisibleTotal.Pence,
		VisibleCount:      v.VisibleCount,
	}
}

// handleExpenses serves the filtered, sorted ledger view and accepts new
// expenses.
func (s *Server) handleExpenses(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleListExpenses(w, r)
	case http.MethodPost:
		s.handleCreateExpense(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	// The full query string names the view, so it doubles as the cache key.
	cacheKey := r.URL.RawQuery
	if view, ok := s.viewCache.Get(cacheKey); ok {
		writeJSON(w, http.StatusOK, viewToWire(view))
		return
	}

	s.mu.Lock()
	s.ledger.SetFilter(parseFilter(r))
	s.ledger.SetViewOptions(parseViewOptions(r))
	view, err := s.ledger.DerivedView(r.Context())
	s.mu.Unlock()
	if err != nil {
		writeError(w, err)
		return
	}

	s.viewCache.Set(cacheKey, view)
	writeJSON(w, http.StatusOK, viewToWire(view))
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	// Seeded before decoding so an absent reimbursable field keeps the
	// documented default rather than collapsing to false.
	in := expenseJSON{Reimbursable: true}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}

	e := fromWire(in)
	// Fresh records always enter as submitted with a server-side timestamp
	// unless the client supplied one.
	if e.Status == "" {
		e.Status = core.StatusSubmitted
	}
	if e.Timestamp == 0 {
		e.Timestamp = time.Now().UnixMilli()
	}

	saved, err := func() (core.Expense, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.ledger.Add(r.Context(), e)
	}()
	if err != nil {
		writeError(w, err)
		return
	}

	s.invalidate()
	applog.FromContext(r.Context()).Info("Expense created",
		applog.NewFields().
			WithOperation(applog.OpCreate).
			WithExpense(saved.ID, saved.Title, saved.Amount.Pence, string(saved.Status)).
			ToSlice()...)
	writeJSON(w, http.StatusCreated, toWire(saved))
}

// handleExpenseByID routes /api/expenses/{id} and its action sub-paths.
func (s *Server) handleExpenseByID(w http.ResponseWriter, r *http.Request) {
	id, action, ok := idFromPath(r.URL.Path, "/api/expenses/")
	if !ok {
		http.Error(w, "invalid expense id", http.StatusBadRequest)
		return
	}

	switch action {
	case "":
		s.handleExpenseRecord(w, r, id)
	case "status":
		s.handleExpenseStatus(w, r, id)
	case "receipt":
		s.handleExpenseReceipt(w, r, id)
	default:
		http.Error(w, "not found", http.StatusNotFound)
	}
}

func (s *Server) handleExpenseRecord(w http.ResponseWriter, r *http.Request, id int64) {
	switch r.Method {
	case http.MethodGet:
		s.mu.Lock()
		e, err := s.ledger.Get(r.Context(), id)
		s.mu.Unlock()
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toWire(e))

	case http.MethodPut:
		in := expenseJSON{Reimbursable: true}
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
			return
		}
		e := fromWire(in)
		e.ID = id

		s.mu.Lock()
		err := s.ledger.Update(r.Context(), e)
		s.mu.Unlock()
		if err != nil {
			writeError(w, err)
			return
		}
		s.invalidate()
		writeJSON(w, http.StatusOK, toWire(e.Normalized()))

	case http.MethodDelete:
		s.mu.Lock()
		err := s.ledger.Delete(r.Context(), id)
		s.mu.Unlock()
		if err != nil {
			writeError(w, err)
			return
		}
		s.invalidate()
		applog.FromContext(r.Context()).Info("Expense deleted",
			applog.FieldOperation, applog.OpDelete,
			applog.FieldExpenseID, id)
		w.WriteHeader(http.StatusNoContent)

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleExpenseStatus(w http.ResponseWriter, r *http.Request, id int64) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}

	s.mu.Lock()
	err := s.ledger.SetExpenseStatus(r.Context(), id, core.ExpenseStatus(body.Status))
	s.mu.Unlock()
	if err != nil {
		writeError(w, err)
		return
	}
	s.invalidate()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleExpenseReceipt(w http.ResponseWriter, r *http.Request, id int64) {
	switch r.Method {
	case http.MethodPost:
		var body struct {
			URI string `json:"uri"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
			return
		}

		s.mu.Lock()
		err := s.ledger.AttachReceipt(r.Context(), id, body.URI)
		s.mu.Unlock()
		if err != nil {
			writeError(w, err)
			return
		}

	case http.MethodDelete:
		s.mu.Lock()
		err := s.ledger.ClearReceipt(r.Context(), id)
		s.mu.Unlock()
		if err != nil {
			writeError(w, err)
			return
		}

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.invalidate()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMerchants(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	prefix := sanitizeInput(r.URL.Query().Get("prefix"))
	if suggestions, ok := s.suggestCache.Get(prefix); ok {
		writeJSON(w, http.StatusOK, map[string][]string{"merchants": suggestions})
		return
	}

	s.mu.Lock()
	suggestions, err := s.ledger.SuggestMerchants(r.Context(), prefix)
	s.mu.Unlock()
	if err != nil {
		writeError(w, err)
		return
	}
	if suggestions == nil {
		suggestions = []string{}
	}

	s.suggestCache.Set(prefix, suggestions)
	writeJSON(w, http.StatusOK, map[string][]string{"merchants": suggestions})
}
