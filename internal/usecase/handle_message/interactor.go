// Package handle_message
package handle_message

import (
	"context"

	"zhatMod/internal/app/events"
	"zhatMod/internal/domain"
	"zhatMod/internal/usecase/commands"
)

const dashboardUsername = "web-user"

type Publisher interface {
	Publish(topic string, payload any)
}

type MessageCounter interface {
	ChatMessage(platform string)
}

type Interactor struct {
	router  *commands.Router
	out     domain.OutgoingMessagePort
	bus     Publisher
	counter MessageCounter
}

func NewInteractor(out domain.OutgoingMessagePort, router *commands.Router, bus Publisher, counter MessageCounter) *Interactor {
	return &Interactor{
		router:  router,
		out:     out,
		bus:     bus,
		counter: counter,
	}
}

// Handle publica el mensaje en el bus y lo pasa al router de comandos.
func (uc *Interactor) Handle(ctx context.Context, msg domain.Message) error {
	if msg.Username == "" && msg.Platform == domain.PlatformDashboard {
		msg.Username = dashboardUsername
	}

	if uc.counter != nil {
		uc.counter.ChatMessage(string(msg.Platform))
	}
	if uc.bus != nil {
		uc.bus.Publish(events.TopicChatMessage, events.NewChatMessageDTO(msg))
	}

	return uc.router.Handle(ctx, msg, uc.out)
}
