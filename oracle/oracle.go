// Package oracle wraps the remote estimation model. It owns the courtesy
// cooldown before each call and turns every failure to obtain a reply into a
// TransportError; retry policy belongs to the caller.
package oracle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// DefaultCooldown is the pause before every attempt.
const DefaultCooldown = time.Second

// ErrTransport matches any TransportError under errors.Is.
var ErrTransport = errors.New("oracle: transport failure")

// Generator produces a text reply for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, prompt string) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// TransportError means the call did not complete with a reply.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%v: %v", ErrTransport, e.Err)
}

func (e *TransportError) Unwrap() []error {
	return []error{ErrTransport, e.Err}
}

type Options struct {
	// Cooldown before each attempt. Zero selects DefaultCooldown; negative
	// disables the pause.
	Cooldown time.Duration
}

// Client issues exactly one remote call per Ask.
type Client struct {
	gen      Generator
	cooldown time.Duration
	sleep    func(ctx context.Context, d time.Duration) error
}

func NewClient(gen Generator, opts Options) *Client {
	cooldown := opts.Cooldown
	if cooldown == 0 {
		cooldown = DefaultCooldown
	}
	if cooldown < 0 {
		cooldown = 0
	}
	return &Client{gen: gen, cooldown: cooldown, sleep: sleepContext}
}

// Ask waits for the cooldown, then submits prompt once. A cancelled context
// is returned as-is so callers can tell shutdown apart from a failed call.
func (c *Client) Ask(ctx context.Context, prompt string) (string, error) {
	ctx, span := otel.Tracer("loralocate/oracle").Start(ctx, "oracle.attempt")
	defer span.End()
	span.SetAttributes(attribute.Int("prompt.bytes", len(prompt)))

	if err := c.sleep(ctx, c.cooldown); err != nil {
		span.SetStatus(codes.Error, "cancelled during cooldown")
		return "", err
	}
	text, err := c.gen.Generate(ctx, prompt)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			span.SetStatus(codes.Error, "cancelled")
			return "", ctxErr
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport failure")
		return "", &TransportError{Err: err}
	}
	span.SetAttributes(attribute.Int("response.bytes", len(text)))
	return text, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
