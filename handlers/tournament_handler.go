package handlers

import (
	"errors"
	"net/http"

	"github.com/Dosada05/popularity-cup/services"
)

type TournamentHandler struct {
	tournamentService services.TournamentService
}

func NewTournamentHandler(ts services.TournamentService) *TournamentHandler {
	return &TournamentHandler{tournamentService: ts}
}

// StartHandler обрабатывает POST /tournament/start
func (h *TournamentHandler) StartHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}
	var input struct {
		Title string `json:"title"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	match, err := h.tournamentService.Start(r.Context(), input.Title, actor)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusCreated, jsonResponse{"match": match}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// AdvanceHandler обрабатывает POST /tournament/advance
func (h *TournamentHandler) AdvanceHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}
	result, err := h.tournamentService.Advance(r.Context(), actor)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"advance": result}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// CloseHandler обрабатывает POST /tournament/close
func (h *TournamentHandler) CloseHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}
	counts, err := h.tournamentService.CloseMatch(r.Context(), actor)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"locked_counts": counts}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// EndHandler обрабатывает POST /tournament/end
func (h *TournamentHandler) EndHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}
	entry, err := h.tournamentService.End(r.Context(), actor)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"winner": entry}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ResetHandler обрабатывает POST /tournament/reset
func (h *TournamentHandler) ResetHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}
	if err := h.tournamentService.Reset(r.Context(), actor); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"message": "reset complete, history kept"}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ScoreboardHandler обрабатывает GET /tournament/scoreboard
func (h *TournamentHandler) ScoreboardHandler(w http.ResponseWriter, r *http.Request) {
	board, err := h.tournamentService.Scoreboard(r.Context())
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"scoreboard": board}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// HistoryHandler обрабатывает GET /history
func (h *TournamentHandler) HistoryHandler(w http.ResponseWriter, r *http.Request) {
	history, err := h.tournamentService.History(r.Context())
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"history": history}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// DeleteHistoryHandler обрабатывает DELETE /history?title=...
func (h *TournamentHandler) DeleteHistoryHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}
	title := r.URL.Query().Get("title")
	if title == "" {
		badRequestResponse(w, r, errors.New("title query parameter is required"))
		return
	}

	removed, err := h.tournamentService.DeleteHistory(r.Context(), title, actor)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"deleted": removed}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
