package main

import (
	"net/http"
	"time"

	"github.com/tecu23/duel-server/pkg/messages"
)

type healthPlayer struct {
	ID    string `json:"id"`
	Side  string `json:"side"`
	Ready bool   `json:"ready"`
}

type healthMatch struct {
	ID        string  `json:"id"`
	Turn      string  `json:"turn"`
	WhiteTime float64 `json:"white_time"`
	BlackTime float64 `json:"black_time"`
}

type healthResponse struct {
	Status      string         `json:"status"`
	Uptime      string         `json:"uptime"`
	MatchActive bool           `json:"match_active"`
	Players     []healthPlayer `json:"players"`
	Match       *healthMatch   `json:"match,omitempty"`
}

// handleHealth handles the GET /health endpoint
//
//	@Summary	Liveness and uptime
//	@Tags		health
//	@Produce	json
//	@Success	200	{object}	healthResponse
//	@Router		/health [get]
func (app *application) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := healthResponse{
		Status:      "ok",
		Uptime:      time.Since(app.StartTime).Round(time.Second).String(),
		MatchActive: app.Session.Active(),
		Players:     []healthPlayer{},
	}

	for _, p := range app.Session.Players() {
		resp.Players = append(resp.Players, healthPlayer{ID: p.ID.String(), Side: string(p.Side), Ready: p.Ready})
	}

	if resp.MatchActive {
		snap := app.Session.Snapshot()
		resp.Match = &healthMatch{
			ID:        snap.MatchID.String(),
			Turn:      string(snap.Turn),
			WhiteTime: messages.Seconds(snap.WhiteTime),
			BlackTime: messages.Seconds(snap.BlackTime),
		}
	}

	app.writeJSON(w, http.StatusOK, resp)
}
