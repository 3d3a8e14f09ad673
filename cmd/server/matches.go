package main

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/tecu23/duel-server/pkg/repository"
)

// handleListMatches handles GET /matches
//
//	@Summary	List finished matches, most recent first
//	@Tags		matches
//	@Produce	json
//	@Security	ApiKeyAuth
//	@Success	200	{array}	repository.MatchRecord
//	@Failure	401
//	@Router		/matches [get]
func (app *application) handleListMatches(w http.ResponseWriter, _ *http.Request) {
	app.writeJSON(w, http.StatusOK, app.Matches.ListMatches())
}

// handleGetMatch handles GET /matches/{id}
//
//	@Summary	Get a finished match
//	@Tags		matches
//	@Produce	json
//	@Security	ApiKeyAuth
//	@Param		id	path		string	true	"Match ID"
//	@Success	200	{object}	repository.MatchRecord
//	@Failure	401
//	@Failure	404
//	@Router		/matches/{id} [get]
func (app *application) handleGetMatch(w http.ResponseWriter, r *http.Request) {
	record, err := app.Matches.GetMatch(r.PathValue("id"))
	if err != nil {
		if errors.Is(err, repository.ErrMatchNotFound) {
			http.Error(w, "match not found", http.StatusNotFound)
			return
		}
		app.Logger.Error("get match failed", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	app.writeJSON(w, http.StatusOK, record)
}

func (app *application) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		app.Logger.Warn("failed to write response", zap.Error(err))
	}
}
