package main

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/kmorel/lantern"
	"github.com/microcosm-cc/bluemonday"
)

// handlers holds dependencies for all HTTP handler methods.
type handlers struct {
	engine    *lantern.Engine
	jwtSecret string
	sanitize  *bluemonday.Policy
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("lantern-web: encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// sanitizeMessage strips any markup from viewer-facing text fields. Content
// comes from untrusted chat input and is served to browsers as-is by API
// consumers.
func (h *handlers) sanitizeMessage(m *lantern.EnrichedMessage) {
	m.Content = h.sanitize.Sanitize(m.Content)
	if m.Author != nil {
		m.Author.Name = h.sanitize.Sanitize(m.Author.Name)
	}
}

// GET /m/{messageID}
func (h *handlers) handleMessage(w http.ResponseWriter, r *http.Request) {
	messageID := pathID(r, "messageID")
	if messageID <= 0 {
		writeError(w, http.StatusBadRequest, "invalid message id")
		return
	}

	viewer := viewerFromRequest(r, h.jwtSecret)
	enriched, err := h.engine.EnrichMessage(r.Context(), viewer, messageID)
	if err != nil {
		if errors.Is(err, lantern.ErrNotFound) {
			writeError(w, http.StatusNotFound, "message not found")
			return
		}
		log.Printf("lantern-web: enrich message %d: %v", messageID, err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	h.sanitizeMessage(enriched)
	writeJSON(w, http.StatusOK, enriched)
}

// GET /c/{channelID}/messages?limit=&offset=
func (h *handlers) handleChannelMessages(w http.ResponseWriter, r *http.Request) {
	channelID := pathID(r, "channelID")
	if channelID <= 0 {
		writeError(w, http.StatusBadRequest, "invalid channel id")
		return
	}

	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)
	if limit <= 0 || limit > 200 || offset < 0 {
		writeError(w, http.StatusBadRequest, "invalid page bounds")
		return
	}

	viewer := viewerFromRequest(r, h.jwtSecret)
	page, err := h.engine.EnrichChannelMessages(r.Context(), viewer, channelID, limit, offset)
	if err != nil {
		log.Printf("lantern-web: list channel %d: %v", channelID, err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	for i := range page {
		h.sanitizeMessage(&page[i])
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"channel_id": channelID,
		"messages":   page,
		"count":      len(page),
	})
}

// GET /c/{channelID}/latest
func (h *handlers) handleChannelLatest(w http.ResponseWriter, r *http.Request) {
	channelID := pathID(r, "channelID")
	if channelID <= 0 {
		writeError(w, http.StatusBadRequest, "invalid channel id")
		return
	}

	latest, err := h.engine.LatestChannelMessage(channelID)
	if err != nil {
		log.Printf("lantern-web: latest for channel %d: %v", channelID, err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if latest == nil {
		writeError(w, http.StatusNotFound, "channel is empty or unknown")
		return
	}

	viewer := viewerFromRequest(r, h.jwtSecret)
	enriched, err := h.engine.EnrichMessage(r.Context(), viewer, latest.ID)
	if err != nil {
		log.Printf("lantern-web: enrich latest %d: %v", latest.ID, err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	h.sanitizeMessage(enriched)
	writeJSON(w, http.StatusOK, enriched)
}

// GET /u/{userID}
func (h *handlers) handleUser(w http.ResponseWriter, r *http.Request) {
	userID := pathID(r, "userID")
	if userID <= 0 {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	account, err := h.engine.GetAccount(userID)
	if err != nil {
		log.Printf("lantern-web: get account %d: %v", userID, err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if account == nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}

	account.Name = h.sanitize.Sanitize(account.Name)
	writeJSON(w, http.StatusOK, account)
}

// POST /api/mentions with body {"content": "..."}
func (h *handlers) handleResolveMentions(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	meta, err := h.engine.ResolveMentions(req.Content)
	if err != nil {
		log.Printf("lantern-web: resolve mentions: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, meta)
}

func queryInt(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return -1
	}
	return n
}
