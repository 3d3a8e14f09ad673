package main

import (
	"net/http"

	httpSwagger "github.com/swaggo/http-swagger"

	_ "github.com/tecu23/duel-server/docs"
)

func (app *application) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", app.handleHealth)
	mux.HandleFunc("GET /matches", app.authenticate(app.handleListMatches))
	mux.HandleFunc("GET /matches/{id}", app.authenticate(app.handleGetMatch))
	mux.HandleFunc("GET /ws", app.authenticate(app.handleWebSocket))
	mux.Handle("GET /swagger/", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))

	return app.logRequests(mux)
}
