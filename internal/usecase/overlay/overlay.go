package overlay

import (
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	FileName    = "overlay.html"
	DefaultPort = 7472
)

// Path arma la ruta del overlay para OBS: <userDataDir>/overlay.html, con
// ?port= solo si el puerto no es el de por defecto y &instance= si hay instancia.
func Path(userDataDir string, port int, instance string) string {
	var b strings.Builder
	b.WriteString(filepath.Join(userDataDir, FileName))

	sep := "?"
	add := func(key, value string) {
		b.WriteString(sep)
		b.WriteString(key)
		b.WriteByte('=')
		b.WriteString(value)
		sep = "&"
	}

	if port > 0 && port != DefaultPort {
		add("port", strconv.Itoa(port))
	}
	if instance != "" {
		add("instance", escapeComponent(instance))
	}

	return b.String()
}

// QueryEscape escapa además !'()* y usa + para el espacio; encodeURIComponent no.
var componentUnescaper = strings.NewReplacer(
	"+", "%20",
	"%21", "!",
	"%27", "'",
	"%28", "(",
	"%29", ")",
	"%2A", "*",
)

// escapeComponent escapa igual que encodeURIComponent del navegador.
func escapeComponent(s string) string {
	return componentUnescaper.Replace(url.QueryEscape(s))
}
