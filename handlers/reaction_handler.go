package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Dosada05/popularity-cup/models"
	"github.com/Dosada05/popularity-cup/services"
)

// ReactionBoard is the part of the chat board voters act on.
type ReactionBoard interface {
	AddReaction(ctx context.Context, channelID, messageID string, reaction models.Reaction) error
	RemoveReaction(ctx context.Context, channelID, messageID, voterID, emoji string) error
}

type ReactionHandler struct {
	board             ReactionBoard
	tournamentService services.TournamentService
}

func NewReactionHandler(board ReactionBoard, ts services.TournamentService) *ReactionHandler {
	return &ReactionHandler{board: board, tournamentService: ts}
}

type reactionInput struct {
	Emoji string `json:"emoji"`
}

// AddReaction обрабатывает PUT /channels/{channelID}/messages/{messageID}/reactions
func (h *ReactionHandler) AddReaction(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}
	channelID, messageID := chi.URLParam(r, "channelID"), chi.URLParam(r, "messageID")

	var input reactionInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if input.Emoji == "" {
		badRequestResponse(w, r, errors.New("emoji is required"))
		return
	}

	err := h.board.AddReaction(r.Context(), channelID, messageID, models.Reaction{
		VoterID:     actor.ID,
		DisplayName: actor.DisplayName,
		Emoji:       input.Emoji,
	})
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	h.refresh(r, channelID, messageID)

	w.WriteHeader(http.StatusNoContent)
}

// RemoveReaction обрабатывает DELETE /channels/{channelID}/messages/{messageID}/reactions
func (h *ReactionHandler) RemoveReaction(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}
	channelID, messageID := chi.URLParam(r, "channelID"), chi.URLParam(r, "messageID")

	var input reactionInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := h.board.RemoveReaction(r.Context(), channelID, messageID, actor.ID, input.Emoji); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	h.refresh(r, channelID, messageID)

	w.WriteHeader(http.StatusNoContent)
}

// Ошибка обновления табло не отменяет уже принятый голос.
func (h *ReactionHandler) refresh(r *http.Request, channelID, messageID string) {
	if err := h.tournamentService.RefreshMatch(r.Context(), channelID, messageID); err != nil {
		slog.WarnContext(r.Context(), "failed to refresh match after reaction",
			slog.String("channel_id", channelID), slog.String("message_id", messageID), slog.Any("error", err))
	}
}
