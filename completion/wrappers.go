package completion

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/goliatone/go-declare/completion"

// WithTimeout bounds every call to svc by d. Expired calls fail with an
// *Error wrapping ErrTimeout. A non-positive d returns svc unchanged.
func WithTimeout(svc Service, d time.Duration) Service {
	if d <= 0 || svc == nil {
		return svc
	}
	return ServiceFunc(func(ctx context.Context, messages []Message) (string, error) {
		callCtx, cancel := context.WithTimeout(ctx, d)
		defer cancel()

		reply, err := svc.Complete(callCtx, messages)
		if err == nil {
			return reply, nil
		}
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return "", &Error{Provider: "timeout", Err: errors.Join(ErrTimeout, err)}
		}
		return "", err
	})
}

// Traced wraps each call in a span named "completion.<name>".
func Traced(svc Service, name string) Service {
	if svc == nil {
		return nil
	}
	tracer := otel.Tracer(tracerName)
	spanName := "completion"
	if name != "" {
		spanName += "." + name
	}
	return ServiceFunc(func(ctx context.Context, messages []Message) (string, error) {
		ctx, span := tracer.Start(ctx, spanName, trace.WithAttributes(
			attribute.Int("completion.messages", len(messages)),
		))
		defer span.End()

		reply, err := svc.Complete(ctx, messages)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return "", err
		}
		span.SetAttributes(attribute.Int("completion.reply_bytes", len(reply)))
		return reply, nil
	})
}
