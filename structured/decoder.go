// Package structured turns free-text completion replies into structured
// values. A reply that is not valid JSON gets exactly one repair round trip
// through the completion service before decoding gives up.
package structured

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/goliatone/go-declare/completion"
	"github.com/goliatone/go-declare/internal/hydrate"
	"github.com/goliatone/go-declare/schema"
	"github.com/goliatone/go-declare/schema/shape"
)

// ErrUndecodable marks a reply that could not be parsed even after repair.
var ErrUndecodable = errors.New("structured: reply is not valid JSON")

// DecodeError carries the original reply and the repaired reply that also
// failed to parse.
type DecodeError struct {
	Reply    string
	Repaired string
	Err      error
}

func (e *DecodeError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("structured: decode failed after repair: %v", e.Err)
}

func (e *DecodeError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

const repairSystemPrompt = "You are a function that extracts JSON data. Your response must contain only a valid JSON string."

func repairUserPrompt(reply string) string {
	return "The following text contains a JSON string that could not be parsed as it is.\n" +
		"---\n" + reply + "\n---\n" +
		"Extract the JSON string. Answer with nothing but the raw JSON string itself."
}

// Option configures a Decoder.
type Option func(*Decoder)

// WithLogger sets the logger used for repair and shape warnings.
func WithLogger(logger *zap.Logger) Option {
	return func(d *Decoder) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithShapeCheck compares decoded values to their schema and logs a warning
// when they differ. The value is returned unchanged either way.
func WithShapeCheck() Option {
	return func(d *Decoder) {
		d.shapeCheck = true
	}
}

// Decoder parses replies and repairs them through a completion service.
type Decoder struct {
	service    completion.Service
	logger     *zap.Logger
	shapeCheck bool
}

// NewDecoder builds a Decoder that uses svc for repair requests.
func NewDecoder(svc completion.Service, opts ...Option) *Decoder {
	d := &Decoder{service: svc, logger: zap.NewNop()}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d
}

// Complete sends messages and decodes the reply. An empty reply decodes to
// nil.
func (d *Decoder) Complete(ctx context.Context, s schema.Schema, messages ...completion.Message) (any, error) {
	reply, err := d.request(ctx, messages)
	if err != nil {
		return nil, err
	}
	return d.Decode(ctx, reply, s)
}

// Decode parses reply as JSON, making one repair request when it does not
// parse. s is only consulted by the optional shape check.
func (d *Decoder) Decode(ctx context.Context, reply string, s schema.Schema) (any, error) {
	value, err := parse(reply)
	if err == nil {
		d.checkShape(s, value)
		return value, nil
	}

	d.logger.Warn("reply is not valid JSON, requesting repair", zap.Error(err))
	repaired, reqErr := d.request(ctx, []completion.Message{
		completion.System(repairSystemPrompt),
		completion.User(repairUserPrompt(reply)),
	})
	if reqErr != nil {
		return nil, fmt.Errorf("structured: repair request: %w", reqErr)
	}

	value, err = parse(repaired)
	if err != nil {
		return nil, &DecodeError{Reply: reply, Repaired: repaired, Err: errors.Join(ErrUndecodable, err)}
	}
	d.checkShape(s, value)
	return value, nil
}

func (d *Decoder) request(ctx context.Context, messages []completion.Message) (string, error) {
	if d.service == nil {
		return "", &completion.Error{Provider: "structured", Err: errors.New("completion service not configured")}
	}
	reply, err := d.service.Complete(ctx, messages)
	if err != nil {
		if completion.IsEmptyReply(err) {
			return "", nil
		}
		return "", err
	}
	return reply, nil
}

func (d *Decoder) checkShape(s schema.Schema, value any) {
	if !d.shapeCheck || s == nil {
		return
	}
	if err := shape.Check(s, value); err != nil {
		d.logger.Warn("decoded value does not match schema", zap.Error(err))
	}
}

// parse is strict: the whole reply must be a single JSON value. Blank
// replies are read as null.
func parse(reply string) (any, error) {
	if strings.TrimSpace(reply) == "" {
		reply = "null"
	}
	var value any
	if err := json.Unmarshal([]byte(reply), &value); err != nil {
		return nil, err
	}
	return value, nil
}

// Into hydrates a decoded value into T. A nil value is an error, so a null
// reply against an object schema fails here rather than at decode time.
func Into[T any](value any) (T, error) {
	return hydrate.Into[T]("structured value", value)
}
