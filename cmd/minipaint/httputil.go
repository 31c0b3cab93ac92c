package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/fpang/minipaint/internal/auth"
	"github.com/fpang/minipaint/internal/chat"
	"github.com/fpang/minipaint/internal/inventory"
	"github.com/fpang/minipaint/internal/planner"
	"github.com/fpang/minipaint/internal/settings"
	"github.com/fpang/minipaint/internal/store"
	"github.com/rs/zerolog/log"
)

// maxRequestBytes bounds request bodies: a 20 MB image is about 27 MB once
// base64-encoded.
const maxRequestBytes = 32 << 20

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func httpError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// respondError maps domain errors to a status and a message the UI can show.
func respondError(w http.ResponseWriter, err error) {
	status, msg := errorStatus(err)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Int("status", status).Msg("Request failed")
	} else {
		log.Debug().Err(err).Int("status", status).Msg("Request rejected")
	}
	httpError(w, status, msg)
}

func errorStatus(err error) (int, string) {
	var chatErr *chat.Error
	switch {
	case errors.Is(err, planner.ErrNoPlan):
		return http.StatusUnprocessableEntity, "A IA não conseguiu gerar um plano utilizável. Tente novamente ou use outra foto."
	case errors.Is(err, planner.ErrNoHex):
		return http.StatusUnprocessableEntity, "A IA não retornou um código de cor para esta tinta."
	case errors.Is(err, planner.ErrEmptyImport):
		return http.StatusUnprocessableEntity, "Nenhum item reconhecido na lista."
	case errors.As(err, &chatErr):
		if chatErr.Kind == chat.KindQuotaExceeded || chatErr.Kind == chat.KindRateLimited {
			return http.StatusTooManyRequests, chatErr.Message
		}
		return http.StatusBadGateway, chatErr.Message
	case errors.Is(err, auth.ErrNoAPIKey):
		return http.StatusServiceUnavailable, "Nenhuma chave de API do Gemini configurada."
	case errors.Is(err, inventory.ErrNotFound), errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, inventory.ErrDuplicate):
		return http.StatusConflict, err.Error()
	case errors.Is(err, inventory.ErrInvalid), errors.Is(err, settings.ErrInvalid):
		return http.StatusBadRequest, err.Error()
	}
	return http.StatusInternalServerError, "internal error"
}
