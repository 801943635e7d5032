package web

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"shiftplan/internal/apperror"
	"shiftplan/internal/dates"
	"shiftplan/internal/model"
	"shiftplan/internal/wizard"
)

// entryDTO is one entered day. Index is the position EditShift expects.
type entryDTO struct {
	Index      int       `json:"index"`
	Date       dates.Day `json:"date"`
	Skipped    bool      `json:"skipped"`
	TemplateID string    `json:"template_id,omitempty"`
	Summary    string    `json:"summary,omitempty"`
	AllDay     bool      `json:"all_day,omitempty"`
	Start      string    `json:"start,omitempty"`
	End        string    `json:"end,omitempty"`
}

// stateResponse is the JSON view of a wizard state.
type stateResponse struct {
	Kind        string       `json:"kind"`
	Range       *dates.Range `json:"range,omitempty"`
	CurrentDate *dates.Day   `json:"current_date,omitempty"`
	Editing     *entryDTO    `json:"editing,omitempty"`
	Entries     []entryDTO   `json:"entries"`
}

func toEntry(i int, ev model.ShiftEvent) entryDTO {
	out := entryDTO{Index: i, Date: ev.Date, Skipped: ev.Skipped()}
	if t := ev.Template; t != nil {
		out.TemplateID = t.ID
		out.Summary = t.Summary
		out.AllDay = t.AllDay()
		if t.Times != nil {
			out.Start = t.Times.Start.String()
			out.End = t.Times.End.String()
		}
	}
	return out
}

func toEntries(events []model.ShiftEvent) []entryDTO {
	out := make([]entryDTO, len(events))
	for i, ev := range events {
		out[i] = toEntry(i, ev)
	}
	return out
}

func toState(st wizard.State) stateResponse {
	resp := stateResponse{Kind: st.Kind(), Entries: []entryDTO{}}
	switch s := st.(type) {
	case wizard.EnteringShifts:
		r := s.DateRange
		d := s.CurrentDate()
		resp.Range = &r
		resp.CurrentDate = &d
		resp.Entries = toEntries(s.Entered)
	case wizard.EditingShift:
		d := s.CurrentDate()
		e := toEntry(-1, s.ToEdit)
		resp.CurrentDate = &d
		resp.Editing = &e
		resp.Entries = toEntries(s.Entered)
	case wizard.Reviewing:
		resp.Entries = toEntries(s.Entered)
	}
	return resp
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, toState(s.session.State()))
}

func (s *Server) handlePresets(w http.ResponseWriter, r *http.Request) {
	presets, err := s.session.Presets()
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, presets)
}

// dispatch applies a and answers with the resulting state.
func (s *Server) dispatch(w http.ResponseWriter, r *http.Request, a wizard.Action) {
	st, err := s.session.Dispatch(a)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toState(st))
}

type rangeRequest struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

func (s *Server) handleRange(w http.ResponseWriter, r *http.Request) {
	var req rangeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	start, err := dates.ParseDay(req.Start)
	if err != nil {
		writeError(w, r, apperror.NewValidation("invalid start date "+req.Start))
		return
	}
	end, err := dates.ParseDay(req.End)
	if err != nil {
		writeError(w, r, apperror.NewValidation("invalid end date "+req.End))
		return
	}
	s.dispatch(w, r, wizard.SelectRange{Range: dates.NewRange(start, end)})
}

type enterRequest struct {
	TemplateID string `json:"template_id"`
}

func (s *Server) handleEnter(w http.ResponseWriter, r *http.Request) {
	var req enterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	st, err := s.session.Enter(req.TemplateID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toState(st))
}

func (s *Server) handleUndo(w http.ResponseWriter, r *http.Request) {
	s.dispatch(w, r, wizard.Undo{})
}

type editRequest struct {
	Index *int `json:"index"`
}

func (s *Server) handleEdit(w http.ResponseWriter, r *http.Request) {
	var req editRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Index == nil {
		writeError(w, r, apperror.NewValidation("index is required"))
		return
	}
	s.dispatch(w, r, wizard.EditShift{Index: *req.Index})
}

func (s *Server) handleDiscard(w http.ResponseWriter, r *http.Request) {
	s.dispatch(w, r, wizard.DiscardAll{})
}

type importResponse struct {
	Imported int           `json:"imported"`
	Failed   int           `json:"failed"`
	Warning  string        `json:"warning,omitempty"`
	State    stateResponse `json:"state"`
}

// handleImport answers a partial import with 200 and a warning; the
// wizard has already started over in that case.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	// A started import runs to completion even if the client disconnects.
	res, st, err := s.session.Import(context.WithoutCancel(r.Context()))
	if err != nil && !apperror.Is(err, apperror.TypePartialImport) {
		writeError(w, r, err)
		return
	}
	resp := importResponse{Imported: res.Imported, Failed: res.Failed, State: toState(st)}
	if err != nil {
		resp.Warning = apperror.SafeMessage(err)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	body, err := s.session.Export()
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="shifts.ics"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}

func (s *Server) handleListTemplates(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.session.Templates())
}

func (s *Server) handleSaveTemplate(w http.ResponseWriter, r *http.Request) {
	var t model.ShiftTemplate
	if err := decodeJSON(w, r, &t); err != nil {
		writeError(w, r, err)
		return
	}
	saved, err := s.session.SaveTemplate(r.Context(), t)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

func (s *Server) handleDeleteTemplate(w http.ResponseWriter, r *http.Request) {
	if err := s.session.RemoveTemplate(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCalendars(w http.ResponseWriter, r *http.Request) {
	cals, err := s.session.Calendars(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cals)
}

type eventDTO struct {
	TemplateID string `json:"template_id,omitempty"`
	Summary    string `json:"summary"`
	AllDay     bool   `json:"all_day"`
	Start      string `json:"start"`
	End        string `json:"end"`
}

// handleCalendarEvents reads back what has been written to one calendar.
func (s *Server) handleCalendarEvents(w http.ResponseWriter, r *http.Request) {
	if s.events == nil {
		writeError(w, r, apperror.NewNotFound("calendar read-back is not available"))
		return
	}
	evs, err := s.events.Events(r.Context(), chi.URLParam(r, "id"), s.session.Location())
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]eventDTO, len(evs))
	for i, ev := range evs {
		out[i] = eventDTO{TemplateID: ev.TemplateID, Summary: ev.Summary, AllDay: ev.AllDay}
		if ev.AllDay {
			out[i].Start = dates.DayOf(ev.Start).String()
			out[i].End = out[i].Start
		} else {
			out[i].Start = ev.Start.Format(time.RFC3339)
			out[i].End = ev.End.Format(time.RFC3339)
		}
	}
	writeJSON(w, http.StatusOK, out)
}
