package main

import (
	"net/http"

	"github.com/kmorel/lantern"
	"github.com/microcosm-cc/bluemonday"
)

// newRouter sets up all routes using Go 1.22+ enhanced routing.
func newRouter(engine *lantern.Engine, jwtSecret string) http.Handler {
	mux := http.NewServeMux()

	h := &handlers{
		engine:    engine,
		jwtSecret: jwtSecret,
		sanitize:  bluemonday.StrictPolicy(),
	}

	mux.HandleFunc("GET /m/{messageID}", h.handleMessage)
	mux.HandleFunc("GET /c/{channelID}/messages", h.handleChannelMessages)
	mux.HandleFunc("GET /c/{channelID}/latest", h.handleChannelLatest)
	mux.HandleFunc("GET /u/{userID}", h.handleUser)
	mux.HandleFunc("POST /api/mentions", h.handleResolveMentions)

	return mux
}
