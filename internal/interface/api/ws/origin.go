package ws

import (
	"net"
	"net/http"
	"net/url"
	"strings"
)

// originPolicy decide quién puede hablar con el panel. Sin configuración solo
// se aceptan páginas servidas desde loopback y peticiones sin Origin (CLI, OBS).
type originPolicy struct {
	origins map[string]struct{}
	hosts   map[string]struct{}
}

func newOriginPolicy(allowed []string) originPolicy {
	p := originPolicy{
		origins: make(map[string]struct{}),
		hosts:   make(map[string]struct{}),
	}
	for _, raw := range allowed {
		u, err := url.Parse(strings.TrimSpace(raw))
		if err != nil || u.Host == "" {
			continue
		}
		p.origins[strings.ToLower(u.Scheme+"://"+u.Host)] = struct{}{}
		p.hosts[strings.ToLower(u.Host)] = struct{}{}
	}
	return p
}

func (p originPolicy) allowOrigin(origin string) bool {
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return false
	}
	if _, ok := p.origins[strings.ToLower(u.Scheme+"://"+u.Host)]; ok {
		return true
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	return isLoopbackHost(u.Hostname())
}

// allowHost corta el DNS rebinding: el Host tiene que ser loopback o uno configurado.
func (p originPolicy) allowHost(host string) bool {
	if _, ok := p.hosts[strings.ToLower(host)]; ok {
		return true
	}
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return isLoopbackHost(host)
}

func (p originPolicy) checkOrigin(r *http.Request) bool {
	return p.allowHost(r.Host) && p.allowOrigin(r.Header.Get("Origin"))
}

// middleware aplica la política a todo el router: CORS solo para orígenes
// permitidos y nada que cambie estado desde otro origen.
func (p originPolicy) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !p.allowHost(r.Host) {
			writeError(w, http.StatusForbidden, "host no permitido")
			return
		}

		origin := r.Header.Get("Origin")
		allowed := p.allowOrigin(origin)
		isAPI := strings.HasPrefix(r.URL.Path, "/api/")

		if isAPI && origin != "" && allowed {
			setCORSHeaders(w, origin)
		}
		if !allowed && r.Method != http.MethodGet && r.Method != http.MethodHead {
			writeError(w, http.StatusForbidden, "origen no permitido")
			return
		}
		if isAPI && r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func setCORSHeaders(w http.ResponseWriter, origin string) {
	w.Header().Set("Access-Control-Allow-Origin", origin)
	w.Header().Add("Vary", "Origin")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,OPTIONS")
}

func isLoopbackHost(host string) bool {
	host = strings.Trim(host, "[]")
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
