package request

import (
	"context"
	"fmt"
	"sync"

	declare "github.com/goliatone/go-declare"
	"github.com/goliatone/go-declare/completion"
)

// BotData is the persisted form of a HistoryBot.
type BotData struct {
	SystemCore string               `json:"systemCore"`
	History    []completion.Message `json:"history"`
}

// HistoryBot is a conversation that remembers every exchange. Its history is
// saved with the store, so a reloaded bot continues where it left off.
type HistoryBot struct {
	id         string
	systemCore string
	service    completion.Service

	mu      sync.Mutex
	history []completion.Message
}

// Send asks prompt with the whole history as context and records the turn.
func (b *HistoryBot) Send(ctx context.Context, prompt string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	messages := make([]completion.Message, 0, len(b.history)+2)
	messages = append(messages, completion.System(b.systemCore))
	messages = append(messages, b.history...)
	messages = append(messages, completion.User(prompt))

	reply, err := b.service.Complete(ctx, messages)
	if err != nil && !completion.IsEmptyReply(err) {
		return "", err
	}
	if reply == "" {
		return "", &completion.Error{Provider: b.id, Err: fmt.Errorf("no response from bot %q: %w", b.id, completion.ErrEmptyReply)}
	}
	b.history = append(b.history, completion.User(prompt), completion.Assistant(reply))
	return reply, nil
}

// History returns a copy of the recorded turns.
func (b *HistoryBot) History() []completion.Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]completion.Message(nil), b.history...)
}

// ID returns the store id of the bot.
func (b *HistoryBot) ID() string { return b.id }

func (b *HistoryBot) serialize() any {
	b.mu.Lock()
	defer b.mu.Unlock()
	return BotData{SystemCore: b.systemCore, History: append([]completion.Message{}, b.history...)}
}

// HistoryBot declares a bot with an empty history.
func (c *Compiler) HistoryBot(systemCore string) declare.Declaration {
	return declare.Declaration{
		Constructor: c.bot,
		Data:        BotData{SystemCore: c.core(systemCore), History: []completion.Message{}},
	}
}

// Bot declares name as a history bot and returns it.
func (c *Compiler) Bot(ctx context.Context, store Declarer, name, systemCore string) (*HistoryBot, error) {
	v, err := store.Declare(ctx, name, c.HistoryBot(systemCore))
	if err != nil {
		return nil, err
	}
	bot, ok := v.(*HistoryBot)
	if !ok {
		return nil, fmt.Errorf("%w: %s is %T", declare.ErrInstanceType, name, v)
	}
	return bot, nil
}

type historyBotConstructor struct {
	compiler *Compiler
}

func (*historyBotConstructor) Identity() string                   { return HistoryBotIdentity }
func (*historyBotConstructor) GenerateID(name string) string      { return HistoryBotPrefix + name }
func (*historyBotConstructor) UpdatePolicy() declare.UpdatePolicy { return declare.AlwaysReuse() }

func (k *historyBotConstructor) Create(_ context.Context, id string, raw any) (*declare.Resource, error) {
	data, err := declare.DecodeData[BotData](id, raw)
	if err != nil {
		return nil, err
	}
	bot := &HistoryBot{
		id:         id,
		systemCore: data.SystemCore,
		service:    k.compiler.service,
		history:    data.History,
	}
	return &declare.Resource{
		ConstructorID: HistoryBotIdentity,
		Instance:      bot,
		Serialize:     bot.serialize,
	}, nil
}
