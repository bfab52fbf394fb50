package http

import (
	"encoding/json"
	"net/http"
	"strconv"

	"simpleexpenses/internal/core"
	applog "simpleexpenses/internal/log"
	"simpleexpenses/internal/mileage"
)

type mileageJSON struct {
	ID               int64  `json:"id"`
	Date             string `json:"date"` // YYYY-MM-DD
	FromLabel        string `json:"fromLabel"`
	ToLabel          string `json:"toLabel"`
	DistanceMeters   int    `json:"distanceMeters"`
	RatePencePerMile int    `json:"ratePencePerMile"`
	AmountPence      int    `json:"amountPence"`
	Notes            string `json:"notes,omitempty"`
}

func mileageToWire(e core.MileageEntry) mileageJSON {
	return mileageJSON{
		ID:               e.ID,
		Date:             e.Date.Format("2006-01-02"),
		FromLabel:        e.FromLabel,
		ToLabel:          e.ToLabel,
		DistanceMeters:   e.DistanceMeters,
		RatePencePerMile: e.RatePencePerMile,
		AmountPence:      e.AmountPence,
		Notes:            e.Notes,
	}
}

func (s *Server) handleMileage(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleListMileage(w, r)
	case http.MethodPost:
		s.handleSaveMileage(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleListMileage(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var (
		entries []core.MileageEntry
		err     error
	)
	if q.Get("from") != "" || q.Get("to") != "" {
		from, ferr := parseDate(q.Get("from"))
		to, terr := parseDate(q.Get("to"))
		if ferr != nil || terr != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "from and to must be YYYY-MM-DD"})
			return
		}
		entries, err = s.mileage.ListRange(r.Context(), from, to)
	} else {
		entries, err = s.mileage.List(r.Context())
	}
	if err != nil {
		writeError(w, err)
		return
	}

	out := make([]mileageJSON, len(entries))
	for i, e := range entries {
		out[i] = mileageToWire(e)
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": out})
}

func (s *Server) handleSaveMileage(w http.ResponseWriter, r *http.Request) {
	var in mileageJSON
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}

	date, err := parseDate(in.Date)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "date must be YYYY-MM-DD"})
		return
	}

	saved, err := s.mileage.Save(r.Context(), mileage.SaveParams{
		ID:               in.ID,
		Date:             date,
		FromLabel:        sanitizeInput(in.FromLabel),
		ToLabel:          sanitizeInput(in.ToLabel),
		DistanceMeters:   in.DistanceMeters,
		RatePencePerMile: in.RatePencePerMile,
		Notes:            sanitizeInput(in.Notes),
	})
	if err != nil {
		writeError(w, err)
		return
	}

	applog.FromContext(r.Context()).Info("Mileage entry saved",
		applog.NewFields().
			WithOperation(applog.OpUpdate).
			WithMileage(saved.ID, saved.DistanceMeters, saved.AmountPence).
			ToSlice()...)

	status := http.StatusCreated
	if in.ID != 0 {
		status = http.StatusOK
	}
	writeJSON(w, status, mileageToWire(saved))
}

func (s *Server) handleMileageByID(w http.ResponseWriter, r *http.Request) {
	id, action, ok := idFromPath(r.URL.Path, "/api/mileage/")
	if !ok || action != "" {
		http.Error(w, "invalid mileage id", http.StatusBadRequest)
		return
	}
	if r.Method != http.MethodDelete {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := s.mileage.Delete(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleMileageTotal sums amountPence over an inclusive date range, or over
// a calendar month when year and month are given instead.
func (s *Server) handleMileageTotal(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	q := r.URL.Query()

	var (
		total int64
		err   error
	)
	if q.Get("year") != "" {
		year, yerr := strconv.Atoi(q.Get("year"))
		month, merr := strconv.Atoi(q.Get("month"))
		if yerr != nil || merr != nil || month < 1 || month > 12 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "year and month must be numeric"})
			return
		}
		total, err = s.mileage.TotalPenceInMonth(r.Context(), year, month)
	} else {
		from, ferr := parseDate(q.Get("from"))
		to, terr := parseDate(q.Get("to"))
		if ferr != nil || terr != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "from and to must be YYYY-MM-DD"})
			return
		}
		total, err = s.mileage.TotalPenceInRange(r.Context(), from, to)
	}
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]int64{"totalPence": total})
}

// handleMileageEstimate estimates distance between two coordinates and the
// reimbursable cost at the given rate.
func (s *Server) handleMileageEstimate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var body struct {
		Origin           mileage.LatLng `json:"origin"`
		Destination      mileage.LatLng `json:"destination"`
		RatePencePerMile int            `json:"ratePencePerMile"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}

	meters, err := s.mileage.EstimateMeters(body.Origin, body.Destination)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]int{
		"distanceMeters": meters,
		"amountPence":    mileage.CostPence(meters, body.RatePencePerMile),
	})
}
