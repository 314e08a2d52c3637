package silentauth

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/guild-console/internal/config"
)

type memSink struct {
	credential string
	err        error
}

func (s *memSink) SetCredential(c string) error {
	if s.err != nil {
		return s.err
	}
	s.credential = c
	return nil
}

type fakeFrame struct {
	closed bool
}

func (f *fakeFrame) Close() error { f.closed = true; return nil }

type fakeOpener struct {
	frame   *fakeFrame
	err     error
	openURL string
	opened  chan struct{}
}

func newFakeOpener(err error) *fakeOpener {
	return &fakeOpener{err: err, opened: make(chan struct{})}
}

func (o *fakeOpener) Open(authorizeURL string) (Frame, error) {
	o.openURL = authorizeURL
	defer close(o.opened)
	if o.err != nil {
		return nil, o.err
	}
	o.frame = &fakeFrame{}
	return o.frame, nil
}

// await blocks until Open ran, so reading openURL is safe.
func (o *fakeOpener) await(t *testing.T) {
	t.Helper()
	select {
	case <-o.opened:
	case <-time.After(time.Second):
		t.Fatal("frame never opened")
	}
}

func testAuthConfig() config.AuthConfig {
	return config.AuthConfig{
		AuthorizeURL:         "https://provider.example/oauth2/authorize",
		ClientID:             "client-1",
		LoopbackHost:         "127.0.0.1",
		LoopbackPort:         "47615",
		SilentTimeoutSeconds: 1,
	}
}

func stateParam(t *testing.T, rawURL string) string {
	t.Helper()
	parsed, err := url.Parse(rawURL)
	require.NoError(t, err)
	return parsed.Query().Get("state")
}

func TestAttemptSuccessPersistsCredential(t *testing.T) {
	sink := &memSink{}
	opener := newFakeOpener(nil)
	channel := NewChannel(testAuthConfig(), opener, sink, zap.NewNop())

	result := channel.Attempt(context.Background())
	opener.await(t)
	channel.Deliver(Message{
		Kind:       KindSuccess,
		Credential: "recovered-tok",
		State:      stateParam(t, opener.openURL),
	})

	assert.Equal(t, OutcomeRecovered, <-result)
	assert.Equal(t, "recovered-tok", sink.credential)
	assert.True(t, opener.frame.closed)
}

func TestAttemptSuppressesInteractivePrompt(t *testing.T) {
	opener := newFakeOpener(nil)
	channel := NewChannel(testAuthConfig(), opener, &memSink{}, zap.NewNop())

	result := channel.Attempt(context.Background())
	opener.await(t)
	parsed, err := url.Parse(opener.openURL)
	require.NoError(t, err)
	assert.Equal(t, "none", parsed.Query().Get("prompt"))
	assert.Equal(t, "client-1", parsed.Query().Get("client_id"))
	assert.True(t, strings.HasPrefix(opener.openURL, "https://provider.example/oauth2/authorize?"))

	channel.Deliver(Message{Kind: KindFailed, State: parsed.Query().Get("state")})
	<-result
}

func TestAttemptInteractionRequired(t *testing.T) {
	sink := &memSink{}
	opener := newFakeOpener(nil)
	channel := NewChannel(testAuthConfig(), opener, sink, zap.NewNop())

	result := channel.Attempt(context.Background())
	opener.await(t)
	channel.Deliver(Message{Kind: KindInteractionRequired, State: stateParam(t, opener.openURL)})

	assert.Equal(t, OutcomeInteractionRequired, <-result)
	assert.Empty(t, sink.credential)
}

func TestAttemptFailedMessage(t *testing.T) {
	opener := newFakeOpener(nil)
	channel := NewChannel(testAuthConfig(), opener, &memSink{}, zap.NewNop())

	result := channel.Attempt(context.Background())
	opener.await(t)
	channel.Deliver(Message{Kind: KindFailed, Error: "access_denied", State: stateParam(t, opener.openURL)})

	assert.Equal(t, OutcomeFailed, <-result)
}

func TestAttemptTimesOutOnSilence(t *testing.T) {
	opener := newFakeOpener(nil)
	channel := NewChannel(testAuthConfig(), opener, &memSink{}, zap.NewNop())

	start := time.Now()
	result := channel.Attempt(context.Background())

	assert.Equal(t, OutcomeTimeout, <-result)
	assert.True(t, opener.frame.closed)
	assert.Less(t, time.Since(start), 3*time.Second)
}

func TestAttemptOpenerFailureIsAnOutcomeNotAnError(t *testing.T) {
	opener := newFakeOpener(errors.New("no browser"))
	channel := NewChannel(testAuthConfig(), opener, &memSink{}, zap.NewNop())

	assert.Equal(t, OutcomeFailed, <-channel.Attempt(context.Background()))
}

func TestAttemptPersistFailure(t *testing.T) {
	sink := &memSink{err: errors.New("disk full")}
	opener := newFakeOpener(nil)
	channel := NewChannel(testAuthConfig(), opener, sink, zap.NewNop())

	result := channel.Attempt(context.Background())
	opener.await(t)
	channel.Deliver(Message{Kind: KindSuccess, Credential: "tok", State: stateParam(t, opener.openURL)})

	assert.Equal(t, OutcomeFailed, <-result)
}

func TestDeliverDropsUnknownState(t *testing.T) {
	opener := newFakeOpener(nil)
	channel := NewChannel(testAuthConfig(), opener, &memSink{}, zap.NewNop())

	result := channel.Attempt(context.Background())
	opener.await(t)

	// A message for some other attempt must not complete this one.
	channel.Deliver(Message{Kind: KindSuccess, Credential: "tok", State: "someone-else"})
	select {
	case outcome := <-result:
		t.Fatalf("attempt completed on foreign message: %s", outcome)
	case <-time.After(50 * time.Millisecond):
	}

	channel.Deliver(Message{Kind: KindFailed, State: stateParam(t, opener.openURL)})
	assert.Equal(t, OutcomeFailed, <-result)
}

func TestDeliverAfterTeardownIsDropped(t *testing.T) {
	opener := newFakeOpener(nil)
	channel := NewChannel(testAuthConfig(), opener, &memSink{}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	result := channel.Attempt(ctx)
	opener.await(t)
	cancel()
	assert.Equal(t, OutcomeTimeout, <-result)

	// Does not panic or resurrect the attempt.
	channel.Deliver(Message{Kind: KindSuccess, Credential: "tok", State: stateParam(t, opener.openURL)})
}
