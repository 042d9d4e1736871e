package outs

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"zhatMod/internal/domain"
)

var ErrNoSender = errors.New("outs: no hay sender registrado")

// Sender es la interfaz de los adapters de salida (chat de Twitch, panel local).
type Sender interface {
	// channelID: canal al que hay que responder (ej. "#zeroproject" en Twitch)
	SendMessage(ctx context.Context, platform domain.Platform, channelID, text string) error
}

// MultiSender enruta las respuestas al sender de la plataforma de origen.
type MultiSender struct {
	mu      sync.RWMutex
	senders map[domain.Platform]Sender
}

func NewMultiSender() *MultiSender {
	return &MultiSender{
		senders: make(map[domain.Platform]Sender),
	}
}

// Register asocia una plataforma con un Sender. Reemplaza el anterior si lo había.
func (m *MultiSender) Register(platform domain.Platform, sender Sender) {
	if m == nil || sender == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.senders[platform] = sender
}

func (m *MultiSender) Unregister(platform domain.Platform) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.senders, platform)
}

func (m *MultiSender) Has(platform domain.Platform) bool {
	if m == nil {
		return false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.senders[platform]
	return ok
}

func (m *MultiSender) SendMessage(ctx context.Context, platform domain.Platform, channelID, text string) error {
	if m == nil {
		return ErrNoSender
	}
	m.mu.RLock()
	sender, ok := m.senders[platform]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoSender, platform)
	}

	return sender.SendMessage(ctx, platform, channelID, text)
}
