package handler

import (
	"net/http"

	"github.com/flipwise/flipwise/internal/ctxkeys"
	"github.com/flipwise/flipwise/internal/model"
	"github.com/flipwise/flipwise/internal/service"
)

type FlashcardHandler struct {
	flashcardService *service.FlashcardService
}

func NewFlashcardHandler(flashcardService *service.FlashcardService) *FlashcardHandler {
	return &FlashcardHandler{flashcardService: flashcardService}
}

type generateRequest struct {
	Text string `json:"text"`
}

type flashcardsRequest struct {
	Flashcards []service.Card `json:"flashcards"`
}

func (h *FlashcardHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	err := decodeJSON(w, r, &req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	cards, err := h.flashcardService.Generate(req.Text)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"flashcards": cards})
}

func (h *FlashcardHandler) Save(w http.ResponseWriter, r *http.Request) {
	var req flashcardsRequest
	err := decodeJSON(w, r, &req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	n, err := h.flashcardService.Save(r.Context(), ctxkeys.UserID(r.Context()), req.Flashcards)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message":     "Flashcards saved successfully",
		"saved_count": n,
	})
}

func (h *FlashcardHandler) List(w http.ResponseWriter, r *http.Request) {
	cards, err := h.flashcardService.List(r.Context(), ctxkeys.UserID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}

	if cards == nil {
		cards = []model.Flashcard{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"flashcards": cards})
}
