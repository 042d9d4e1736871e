package commands

// CommandDescriptor expone metadatos de cada comando para mostrarlos en UI.
type CommandDescriptor struct {
	Name     string   `json:"name"`
	Triggers []string `json:"triggers"`
	Usage    string   `json:"usage"`
}

// Catalog lists the registered commands in registration order.
func (r *Router) Catalog() []CommandDescriptor {
	out := make([]CommandDescriptor, 0, len(r.handlers))
	for _, h := range r.handlers {
		out = append(out, CommandDescriptor{
			Name:     h.Name(),
			Triggers: append([]string(nil), h.Triggers()...),
			Usage:    h.Usage(),
		})
	}
	return out
}
