package overlay

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPath(t *testing.T) {
	base := filepath.Join("data", FileName)

	tests := []struct {
		name     string
		port     int
		instance string
		want     string
	}{
		{name: "default port, no instance", port: DefaultPort, want: base},
		{name: "custom port", port: 8080, want: base + "?port=8080"},
		{name: "instance only", port: DefaultPort, instance: "main", want: base + "?instance=main"},
		{name: "port and instance", port: 8080, instance: "main", want: base + "?port=8080&instance=main"},
		{name: "instance escaped", port: DefaultPort, instance: "my overlay&x", want: base + "?instance=my%20overlay%26x"},
		{name: "instance keeps parentheses", port: DefaultPort, instance: "a(b)", want: base + "?instance=a(b)"},
		{name: "instance keeps URI marks", port: DefaultPort, instance: "it's!*~-_.", want: base + "?instance=it's!*~-_."},
		{name: "instance escapes plus and slash", port: DefaultPort, instance: "a+b/c?", want: base + "?instance=a%2Bb%2Fc%3F"},
		{name: "instance utf8", port: DefaultPort, instance: "canción", want: base + "?instance=canci%C3%B3n"},
		{name: "invalid port ignored", port: 0, instance: "a", want: base + "?instance=a"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Path("data", tc.port, tc.instance))
		})
	}
}
