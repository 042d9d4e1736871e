package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/joho/godotenv"

	twitchinfra "zhatMod/internal/infrastructure/platform/twitch"
)

// SOLO PARA DESARROLLO: un login a la vez.
type pendingLogin struct {
	mu    sync.Mutex
	state string
	role  string
}

func (p *pendingLogin) start(role string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = uuid.NewString()
	p.role = role
	return p.state
}

func (p *pendingLogin) consume(state string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if state == "" || state != p.state {
		return "", false
	}
	role := p.role
	p.state, p.role = "", ""
	return role, true
}

// =========================
// STEP 1: iniciar OAuth
// =========================

func handleStartOAuth(client *twitchinfra.OAuthClient, pending *pendingLogin, role string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state := pending.start(role)
		http.Redirect(w, r, client.AuthorizationURL(state, twitchinfra.ScopesForRole(role)), http.StatusFound)
	}
}

// =========================
// STEP 2: callback OAuth
// =========================

func handleCallback(client *twitchinfra.OAuthClient, pending *pendingLogin) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := r.URL.Query().Get("code")
		if code == "" {
			http.Error(w, "falta code", http.StatusBadRequest)
			return
		}

		role, ok := pending.consume(r.URL.Query().Get("state"))
		if !ok {
			http.Error(w, "state inválido", http.StatusBadRequest)
			return
		}

		creds, err := client.ExchangeCode(r.Context(), code)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}

		payload := map[string]any{
			"role":          role,
			"access_token":  creds.AccessToken,
			"refresh_token": creds.RefreshToken,
			"expires_in":    creds.ExpiresIn,
			"scope":         creds.Scopes,
		}
		if user, err := client.FetchUser(r.Context(), creds.AccessToken, ""); err == nil {
			payload["login"] = user.Login
			payload["user_id"] = user.ID
		}

		out, _ := json.MarshalIndent(payload, "", "  ")

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(out)

		fmt.Println("\n==============================")
		fmt.Printf("✅ TOKENS PARA: %s\n", strings.ToUpper(role))
		fmt.Println(string(out))
		fmt.Println("==============================")
	}
}

// =========================
// MAIN
// =========================

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Println("⚠️  No se pudo cargar .env")
	}

	required := []string{
		"TWITCH_CLIENT_ID",
		"TWITCH_CLIENT_SECRET",
		"TWITCH_REDIRECT_URI",
	}

	for _, k := range required {
		if os.Getenv(k) == "" {
			fmt.Printf("❌ Falta %s en .env\n", k)
			return
		}
	}

	client, err := twitchinfra.NewOAuthClient(twitchinfra.OAuthConfig{
		ClientID:     os.Getenv("TWITCH_CLIENT_ID"),
		ClientSecret: os.Getenv("TWITCH_CLIENT_SECRET"),
		RedirectURI:  os.Getenv("TWITCH_REDIRECT_URI"),
	})
	if err != nil {
		fmt.Println("❌", err)
		return
	}

	pending := &pendingLogin{}
	r := chi.NewRouter()

	// STREAMER: necesita los scopes de moderación
	r.Get("/api/oauth/twitch/streamer", handleStartOAuth(client, pending, "streamer"))
	// BOT
	r.Get("/api/oauth/twitch/bot", handleStartOAuth(client, pending, "bot"))
	// CALLBACK
	r.Get("/api/oauth/twitch/callback", handleCallback(client, pending))

	fmt.Println("✅ Twitch OAuth listo")
	fmt.Println("➡ Streamer: http://localhost:3000/api/oauth/twitch/streamer")
	fmt.Println("➡ Bot:      http://localhost:3000/api/oauth/twitch/bot")

	if err := http.ListenAndServe(":3000", r); err != nil {
		fmt.Println("server error:", err)
	}
}
