package commands

import (
	"context"
)

// Command is one slash command: trigger tokens, an argument validator and an executor.
// A is the validated argument tuple; the router never looks inside it.
type Command[A any] interface {
	Name() string
	Triggers() []string
	Usage() string
	Validate(args []string) (A, error)
	Execute(ctx context.Context, args A) bool
}

// Handler is the type-erased view of a Command that the router keeps in its table.
type Handler interface {
	Name() string
	Triggers() []string
	Usage() string
	// Handle returns a *ValidationError when args are rejected; the executor is not run then.
	Handle(ctx context.Context, args []string) (bool, error)
}

type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func invalid(msg string) error {
	return &ValidationError{Message: msg}
}

type boundCommand[A any] struct {
	cmd Command[A]
}

// Bind adapts a typed command to the router's Handler interface.
func Bind[A any](cmd Command[A]) Handler {
	return boundCommand[A]{cmd: cmd}
}

func (b boundCommand[A]) Name() string       { return b.cmd.Name() }
func (b boundCommand[A]) Triggers() []string { return b.cmd.Triggers() }
func (b boundCommand[A]) Usage() string      { return b.cmd.Usage() }

func (b boundCommand[A]) Handle(ctx context.Context, args []string) (bool, error) {
	validated, err := b.cmd.Validate(args)
	if err != nil {
		return false, err
	}
	return b.cmd.Execute(ctx, validated), nil
}
