package handlers

import (
	"net/http"

	"github.com/Dosada05/popularity-cup/services"
)

type ItemHandler struct {
	itemService services.ItemService
}

func NewItemHandler(itemService services.ItemService) *ItemHandler {
	return &ItemHandler{itemService: itemService}
}

type itemsInput struct {
	Items string `json:"items"`
}

// List обрабатывает GET /items
func (h *ItemHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.itemService.ListItems(r.Context())
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"items": items, "count": len(items)}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// Add обрабатывает POST /items
func (h *ItemHandler) Add(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}
	var input itemsInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	added, skipped, err := h.itemService.AddItems(r.Context(), input.Items, actor)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	status := http.StatusCreated
	if len(added) == 0 {
		status = http.StatusOK
	}
	if err := writeJSON(w, status, jsonResponse{"added": emptyIfNil(added), "skipped": emptyIfNil(skipped)}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// Remove обрабатывает DELETE /items (только staff)
func (h *ItemHandler) Remove(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}
	var input itemsInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	removed, err := h.itemService.RemoveItems(r.Context(), input.Items, actor)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"removed": emptyIfNil(removed)}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
