package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"log"
	"net/http"
	"strings"

	"publish-queue/internal/models"
	"publish-queue/internal/service"
)

const successPage = `<!DOCTYPE html>
<html>
<head><title>Connected</title></head>
<body>
<p>Account connected successfully. You can close this window.</p>
<script>setTimeout(function() { window.close(); }, 2000);</script>
</body>
</html>`

const errorPageFormat = `<!DOCTYPE html>
<html>
<head><title>Connection failed</title></head>
<body>
<p>Could not connect the account: %s</p>
<p>Close this window and try again.</p>
</body>
</html>`

// AuthHandler handles the health probe and the OAuth handshake endpoints
type AuthHandler struct {
	handshake   *service.HandshakeService
	credentials *service.CredentialService
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(handshake *service.HandshakeService, credentials *service.CredentialService) *AuthHandler {
	return &AuthHandler{
		handshake:   handshake,
		credentials: credentials,
	}
}

// Health handles GET /health
func (h *AuthHandler) Health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]string{"status": "ok"}); err != nil {
		log.Printf("error encoding response: %v", err)
	}
}

// Auth routes /auth/{platform} and /auth/{platform}/{connect,callback,status}
func (h *AuthHandler) Auth(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/auth/"), "/")
	parts := strings.Split(rest, "/")
	if parts[0] == "" {
		http.Error(w, "platform is required", http.StatusBadRequest)
		return
	}

	platform, err := models.ParsePlatform(parts[0])
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	switch {
	case len(parts) == 1 && r.Method == http.MethodDelete:
		h.disconnect(w, r, platform)
	case len(parts) == 2 && parts[1] == "connect" && r.Method == http.MethodPost:
		h.connect(w, r, platform)
	case len(parts) == 2 && parts[1] == "callback" && r.Method == http.MethodGet:
		h.callback(w, r, platform)
	case len(parts) == 2 && parts[1] == "status" && r.Method == http.MethodGet:
		h.status(w, r, platform)
	default:
		http.Error(w, "not found", http.StatusNotFound)
	}
}

func (h *AuthHandler) connect(w http.ResponseWriter, r *http.Request, platform models.Platform) {
	var req struct {
		UserID string `json:"user_id"`
	}
	if r.Body != nil {
		// Body is optional; a missing user id just means an anonymous connect.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	authURL, state, err := h.handshake.Begin(platform, req.UserID)
	if err != nil {
		log.Printf("error beginning handshake: %v", err)
		http.Error(w, "failed to begin authorization", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]string{
		"authorization_url": authURL,
		"state":             state,
	}); err != nil {
		log.Printf("error encoding response: %v", err)
	}
}

func (h *AuthHandler) callback(w http.ResponseWriter, r *http.Request, platform models.Platform) {
	query := r.URL.Query()

	if providerErr := query.Get("error"); providerErr != "" {
		writeErrorPage(w, http.StatusBadRequest, fmt.Sprintf("provider reported %q", providerErr))
		return
	}

	code := query.Get("code")
	state := query.Get("state")
	if code == "" || state == "" {
		writeErrorPage(w, http.StatusBadRequest, "missing code or state parameter")
		return
	}

	if _, err := h.handshake.Complete(r.Context(), state, code); err != nil {
		if errors.Is(err, service.ErrInvalidState) {
			writeErrorPage(w, http.StatusBadRequest, "authorization session expired or already used")
			return
		}
		log.Printf("platform=%s: handshake completion failed: %v", platform, err)
		writeErrorPage(w, http.StatusInternalServerError, "token exchange failed")
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := w.Write([]byte(successPage)); err != nil {
		log.Printf("error writing response: %v", err)
	}
}

func (h *AuthHandler) disconnect(w http.ResponseWriter, r *http.Request, platform models.Platform) {
	removed, err := h.credentials.Remove(r.Context(), platform)
	if err != nil {
		log.Printf("error removing credential: %v", err)
		http.Error(w, "failed to disconnect platform", http.StatusInternalServerError)
		return
	}
	if !removed {
		http.Error(w, "platform not connected", http.StatusNotFound)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) status(w http.ResponseWriter, r *http.Request, platform models.Platform) {
	status, err := h.credentials.Status(r.Context(), platform)
	if err != nil {
		log.Printf("error reading credential status: %v", err)
		http.Error(w, "failed to read credential status", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(status); err != nil {
		log.Printf("error encoding response: %v", err)
	}
}

func writeErrorPage(w http.ResponseWriter, status int, reason string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	fmt.Fprintf(w, errorPageFormat, html.EscapeString(reason))
}
