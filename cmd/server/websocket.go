package main

import (
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/tecu23/duel-server/pkg/server"
)

func (app *application) upgrader() *websocket.Upgrader {
	u := &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}

	// Without a configured frontend gorilla's same-origin check applies
	if origin := app.Config.FrontendOrigin; origin != "" {
		u.CheckOrigin = func(r *http.Request) bool {
			return r.Header.Get("Origin") == origin
		}
	}

	return u
}

// handleWebSocket handles WebSocket connections
func (app *application) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	// Upgrade HTTP connection to WebSocket
	ws, err := app.upgrader().Upgrade(w, r, nil)
	if err != nil {
		app.Logger.Warn("Failed to upgrade to WebSocket", zap.Error(err))
		return
	}

	conn := app.Hub.Attach(server.NewWebSocketTransport(ws))

	app.Logger.Info("WebSocket connection established",
		zap.String("connection_id", conn.ID.String()),
		zap.String("remote_addr", r.RemoteAddr))
}
