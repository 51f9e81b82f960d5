package request_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	declare "github.com/goliatone/go-declare"
	"github.com/goliatone/go-declare/completion"
	"github.com/goliatone/go-declare/completion/completiontest"
	"github.com/goliatone/go-declare/pkg/state"
	"github.com/goliatone/go-declare/request"
	"github.com/goliatone/go-declare/schema"
)

func heroSchema() schema.Schema {
	return schema.Object("The hero of the story",
		schema.TextField("name", "The hero's name"),
		schema.Field("traits", schema.List("Defining traits", schema.Text("One trait"))),
	)
}

type fixture struct {
	script      *completiontest.Script
	compiler    *request.Compiler
	persistence *state.Persistence
}

func newFixture(t *testing.T, replies ...string) *fixture {
	t.Helper()
	script := completiontest.NewScript(replies...)
	return &fixture{
		script:      script,
		compiler:    request.New(script, request.WithLogger(zaptest.NewLogger(t))),
		persistence: state.NewPersistence(state.NewMemoryStore[declare.ContextState]()),
	}
}

func (f *fixture) open(t *testing.T) *declare.Store {
	t.Helper()
	registry, err := f.compiler.Registry()
	require.NoError(t, err)
	store, err := declare.Open(context.Background(), "story", registry, declare.WithPersistence(f.persistence))
	require.NoError(t, err)
	return store
}

func TestSchemaRequestBuildsPromptAndCaches(t *testing.T) {
	f := newFixture(t, `{"name":"Arin","traits":["brave"]}`)
	store := f.open(t)
	ctx := context.Background()
	props := request.Props{Name: "hero", Input: map[string]any{"setting": "a desert city"}, Schema: heroSchema()}

	value, err := f.compiler.SchemaRequest(ctx, store, props)
	require.NoError(t, err)
	require.Equal(t, map[string]any{"name": "Arin", "traits": []any{"brave"}}, value)
	require.Equal(t, 1, f.script.Calls())

	call := f.script.Call(0)
	require.Len(t, call, 2)
	require.Equal(t, completion.System(request.DefaultSystemCore), call[0])
	prompt := call[1].Content
	require.Contains(t, prompt, "\"setting\": \"a desert city\"")
	require.Contains(t, prompt, schema.Describe(heroSchema()))
	require.Contains(t, prompt, schema.Skeleton(heroSchema()))
	require.True(t, strings.HasSuffix(prompt, "Make sure your answer contains only a JSON string and nothing else."))

	again, err := f.compiler.SchemaRequest(ctx, store, props)
	require.NoError(t, err)
	require.Equal(t, value, again)
	require.Equal(t, 1, f.script.Calls(), "re-declaring must not call the service")
	require.Equal(t, []string{"json-request:hero", "json-request:hero"}, store.Order())
}

func TestSchemaRequestSurvivesReload(t *testing.T) {
	f := newFixture(t, `{"name":"Arin","traits":[]}`)
	ctx := context.Background()
	props := request.Props{Name: "hero", Input: "a desert city", Schema: heroSchema()}

	first := f.open(t)
	_, err := f.compiler.SchemaRequest(ctx, first, props)
	require.NoError(t, err)
	require.NoError(t, first.Save(ctx))

	second := f.open(t)
	value, err := f.compiler.SchemaRequest(ctx, second, props)
	require.NoError(t, err)
	require.Equal(t, map[string]any{"name": "Arin", "traits": []any{}}, value)
	require.Equal(t, 1, f.script.Calls())

	f.script.Push(completiontest.Reply{Text: `{"name":"Sela","traits":[]}`})
	props.Input = "a frozen harbour"
	value, err = f.compiler.SchemaRequest(ctx, second, props)
	require.NoError(t, err)
	require.Equal(t, "Sela", value.(map[string]any)["name"])
	require.Equal(t, 2, f.script.Calls(), "a changed prompt must rebuild exactly once")
}

func TestTwoStageSchemaRequest(t *testing.T) {
	draft := "The hero is Arin, a brave and stubborn courier."
	f := newFixture(t, draft, `{"name":"Arin","traits":["brave","stubborn"]}`)
	store := f.open(t)
	ctx := context.Background()

	value, err := f.compiler.TwoStageSchemaRequest(ctx, store, request.Props{Name: "hero", Input: "a desert city", Schema: heroSchema()})
	require.NoError(t, err)
	require.Equal(t, map[string]any{"name": "Arin", "traits": []any{"brave", "stubborn"}}, value)
	require.Equal(t, 2, f.script.Calls())

	require.Contains(t, f.script.Call(0)[1].Content, schema.Describe(heroSchema()))
	extract := f.script.Call(1)[1].Content
	require.Contains(t, extract, "---\n"+draft+"\n---")
	require.Contains(t, extract, schema.Skeleton(heroSchema()))

	require.Equal(t, []string{"static-request:hero--raw-data", "json-request:hero--json-data"}, store.Order())
	snapshot, err := store.State()
	require.NoError(t, err)
	entry, ok := snapshot.Lookup("static-request:hero--raw-data")
	require.True(t, ok)
	require.Equal(t, draft, entry.Data.(map[string]any)["result"])
}

func TestSchemaRequestRebuildRule(t *testing.T) {
	f := newFixture(t, `{"name":"Arin","traits":[]}`, `{"name":"Arin","traits":["brave"]}`)
	store := f.open(t)
	ctx := context.Background()
	rebuild, err := declare.RuleUpdate(`len(previous.result.traits) == 0`)
	require.NoError(t, err)
	props := request.Props{Name: "hero", Input: "a desert city", Schema: heroSchema(), Rebuild: rebuild}

	for range 3 {
		_, err = f.compiler.SchemaRequest(ctx, store, props)
		require.NoError(t, err)
	}
	value, ok := store.Lookup("json-request:hero")
	require.True(t, ok)
	require.Equal(t, []any{"brave"}, value.(map[string]any)["traits"])
	require.Equal(t, 2, f.script.Calls(), "the rule rebuilds until traits are filled")
}

func TestReserveSchemaRequestFixesOrder(t *testing.T) {
	f := newFixture(t, `{"name":"Arin","traits":[]}`, "A draft.", `"A plot."`)
	store := f.open(t)
	ctx := context.Background()

	f.compiler.ReserveSchemaRequest(store, "plot", true)
	f.compiler.ReserveSchemaRequest(store, "hero", false)
	_, err := f.compiler.SchemaRequest(ctx, store, request.Props{Name: "hero", Input: "a desert city", Schema: heroSchema()})
	require.NoError(t, err)
	_, err = f.compiler.TwoStageSchemaRequest(ctx, store, request.Props{Name: "plot", Input: "a desert city", Schema: schema.Text("A plot")})
	require.NoError(t, err)

	want := []string{"static-request:plot--raw-data", "json-request:plot--json-data", "json-request:hero"}
	require.Equal(t, want, store.Order())
	snapshot, err := store.State()
	require.NoError(t, err)
	require.Equal(t, want, snapshot.IDs())
}

func TestJSONRequestRepairsOnce(t *testing.T) {
	f := newFixture(t, "Here you go: {name: Arin}", `{"name":"Arin","traits":[]}`)
	store := f.open(t)

	value, err := f.compiler.SchemaRequest(context.Background(), store, request.Props{Name: "hero", Schema: heroSchema()})
	require.NoError(t, err)
	require.Equal(t, "Arin", value.(map[string]any)["name"])
	require.Equal(t, 2, f.script.Calls())
	require.Contains(t, f.script.Call(1)[1].Content, "Here you go: {name: Arin}")
}

func TestStaticRequestEmptyReply(t *testing.T) {
	f := newFixture(t, "")
	store := f.open(t)

	_, err := store.Declare(context.Background(), "draft", f.compiler.Static("", "Write a draft"))
	var cerr *declare.ConstructorError
	require.ErrorAs(t, err, &cerr)
	var completionErr *completion.Error
	require.ErrorAs(t, err, &completionErr)
	require.ErrorIs(t, err, completion.ErrEmptyReply)
	_, ok := store.Lookup("static-request:draft")
	require.False(t, ok)
}

func TestCompletionFailurePropagates(t *testing.T) {
	f := newFixture(t)
	boom := &completion.Error{Provider: "openai", Err: errors.New("503")}
	f.script.Fail(boom)
	store := f.open(t)

	_, err := f.compiler.SchemaRequest(context.Background(), store, request.Props{Name: "hero", Schema: heroSchema()})
	require.ErrorIs(t, err, boom)
	require.Equal(t, 0, store.Len())
}

func TestSchemaRequestValidatesSchema(t *testing.T) {
	f := newFixture(t)
	store := f.open(t)

	bad := schema.Object("", schema.TextField("name", "Name"))
	_, err := f.compiler.SchemaRequest(context.Background(), store, request.Props{Name: "hero", Schema: bad})
	require.ErrorIs(t, err, schema.ErrEmptyDescription)

	_, err = f.compiler.TwoStageSchemaRequest(context.Background(), store, request.Props{Schema: heroSchema()})
	require.Error(t, err)
	require.Equal(t, 0, f.script.Calls())
}

func TestTypedNullReplyFailsOnTypedAccess(t *testing.T) {
	type hero struct {
		Name   string   `json:"name"`
		Traits []string `json:"traits"`
	}
	f := newFixture(t, `{"name":"Arin","traits":["brave"]}`)
	store := f.open(t)
	ctx := context.Background()

	got, err := request.Typed[hero](ctx, f.compiler, store, request.Props{Name: "hero", Schema: heroSchema()})
	require.NoError(t, err)
	require.Equal(t, hero{Name: "Arin", Traits: []string{"brave"}}, got)

	f.script.Push(completiontest.Reply{Err: completion.ErrEmptyReply})
	value, err := f.compiler.SchemaRequest(ctx, store, request.Props{Name: "villain", Schema: heroSchema()})
	require.NoError(t, err)
	require.Nil(t, value)

	f.script.Push(completiontest.Reply{Text: "null"})
	_, err = request.Typed[hero](ctx, f.compiler, store, request.Props{Name: "sidekick", Schema: heroSchema()})
	require.Error(t, err)
}

func TestHistoryBotKeepsConversation(t *testing.T) {
	f := newFixture(t, "Greetings.", "I said greetings.")
	ctx := context.Background()

	store := f.open(t)
	bot, err := f.compiler.Bot(ctx, store, "narrator", "You narrate.")
	require.NoError(t, err)
	require.Equal(t, "bot:history-narrator", bot.ID())

	reply, err := bot.Send(ctx, "Hello")
	require.NoError(t, err)
	require.Equal(t, "Greetings.", reply)
	_, err = bot.Send(ctx, "What did you say?")
	require.NoError(t, err)

	second := f.script.Call(1)
	require.Equal(t, []completion.Message{
		completion.System("You narrate."),
		completion.User("Hello"),
		completion.Assistant("Greetings."),
		completion.User("What did you say?"),
	}, second)
	require.NoError(t, store.Save(ctx))

	reloaded := f.open(t)
	again, err := f.compiler.Bot(ctx, reloaded, "narrator", "You narrate.")
	require.NoError(t, err)
	require.Len(t, again.History(), 4)

	f.script.Push(completiontest.Reply{Text: ""})
	_, err = again.Send(ctx, "Anything else?")
	require.ErrorIs(t, err, completion.ErrEmptyReply)
	require.Contains(t, err.Error(), "bot:history-narrator")
	require.Len(t, again.History(), 4)
}

func TestRegistryCoversConstructors(t *testing.T) {
	f := newFixture(t)
	registry, err := f.compiler.Registry()
	require.NoError(t, err)
	require.Equal(t, []string{request.StaticIdentity, request.JSONIdentity, request.HistoryBotIdentity}, registry.Identities())
	require.NoError(t, registry.CheckName("hero"))
}
