package completion_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-declare/completion"
	"github.com/goliatone/go-declare/completion/completiontest"
)

func TestWithTimeoutReportsCompletionError(t *testing.T) {
	slow := completion.ServiceFunc(func(ctx context.Context, _ []completion.Message) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})

	svc := completion.WithTimeout(slow, 10*time.Millisecond)
	_, err := svc.Complete(context.Background(), []completion.Message{completion.User("hi")})

	var completionErr *completion.Error
	require.ErrorAs(t, err, &completionErr)
	require.ErrorIs(t, err, completion.ErrTimeout)
}

func TestWithTimeoutKeepsCallerCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	svc := completion.WithTimeout(completiontest.NewScript("unused"), time.Second)
	_, err := svc.Complete(ctx, []completion.Message{completion.User("hi")})
	require.ErrorIs(t, err, context.Canceled)
	require.False(t, errors.Is(err, completion.ErrTimeout))
}

func TestWithTimeoutPassesReplies(t *testing.T) {
	script := completiontest.NewScript("hello")
	svc := completion.WithTimeout(script, time.Second)

	reply, err := svc.Complete(context.Background(), []completion.Message{completion.User("hi")})
	require.NoError(t, err)
	require.Equal(t, "hello", reply)
	require.Equal(t, 1, script.Calls())

	require.Same(t, script, completion.WithTimeout(script, 0))
}

func TestTracedPropagatesResults(t *testing.T) {
	boom := errors.New("boom")
	script := completiontest.NewScript("ok").Fail(boom)
	svc := completion.Traced(script, "test")

	reply, err := svc.Complete(context.Background(), []completion.Message{completion.System("s"), completion.User("u")})
	require.NoError(t, err)
	require.Equal(t, "ok", reply)

	_, err = svc.Complete(context.Background(), []completion.Message{completion.User("u")})
	require.ErrorIs(t, err, boom)

	require.Equal(t, completion.RoleSystem, script.Call(0)[0].Role)
}

func TestErrorFormatting(t *testing.T) {
	err := &completion.Error{Provider: "openai", Model: "gpt", Err: completion.ErrEmptyReply}
	require.Equal(t, "completion: openai(gpt): completion: empty reply", err.Error())
	require.True(t, completion.IsEmptyReply(err))
}

func TestBackendsRequireAPIKey(t *testing.T) {
	_, err := completion.NewOpenAI(completion.OpenAIConfig{})
	var completionErr *completion.Error
	require.ErrorAs(t, err, &completionErr)

	_, err = completion.NewGemini(context.Background(), completion.GeminiConfig{})
	require.ErrorAs(t, err, &completionErr)
}
