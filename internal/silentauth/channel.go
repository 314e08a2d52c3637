package silentauth

import (
	"context"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/guild-console/internal/config"
)

// Frame is one live, invisible provider flow. Closing it tears the flow
// down; messages arriving afterwards are dropped by state mismatch.
type Frame interface {
	Close() error
}

// FrameOpener starts an invisible provider flow against authorizeURL.
type FrameOpener interface {
	Open(authorizeURL string) (Frame, error)
}

// CredentialSink persists a recovered credential. Satisfied by the session
// store.
type CredentialSink interface {
	SetCredential(credential string) error
}

// Channel is the one-shot, time-bounded silent reauthentication side
// channel. It never returns an error to its caller: every attempt funnels
// into exactly one Outcome, delivered on the channel Attempt returns.
type Channel struct {
	opener       FrameOpener
	store        CredentialSink
	logger       *zap.Logger
	timeout      time.Duration
	authorizeURL string
	clientID     string
	redirectURI  string

	mu      sync.Mutex
	pending map[string]chan Message
}

// NewChannel builds the side channel. Deliver must be registered as the
// listener's message sink exactly once, before any attempt.
func NewChannel(cfg config.AuthConfig, opener FrameOpener, store CredentialSink, logger *zap.Logger) *Channel {
	return &Channel{
		opener:       opener,
		store:        store,
		logger:       logger,
		timeout:      cfg.SilentTimeout(),
		authorizeURL: cfg.AuthorizeURL,
		clientID:     cfg.ClientID,
		redirectURI:  "http://" + cfg.LoopbackAddr() + "/auth/silent/callback",
		pending:      make(map[string]chan Message),
	}
}

// Attempt starts one silent login flow and reports its outcome on the
// returned channel. All failure modes, the opener refusing to start
// included, are reported as outcomes; nothing is thrown at the caller.
// Single-shot gating lives with the session provider, not here.
func (c *Channel) Attempt(ctx context.Context) <-chan Outcome {
	result := make(chan Outcome, 1)
	state := uuid.NewString()

	messages := make(chan Message, 1)
	c.mu.Lock()
	c.pending[state] = messages
	c.mu.Unlock()

	go c.run(ctx, state, messages, result)
	return result
}

// Deliver routes a provider message to the attempt it belongs to. Messages
// whose state matches no pending attempt are dropped; a definitive message
// after teardown lands here.
func (c *Channel) Deliver(msg Message) {
	c.mu.Lock()
	pending, ok := c.pending[msg.State]
	c.mu.Unlock()
	if !ok {
		c.logger.Debug("dropping silent login message with unknown state",
			zap.String("kind", msg.Kind))
		return
	}
	select {
	case pending <- msg:
	default:
	}
}

func (c *Channel) run(ctx context.Context, state string, messages chan Message, result chan<- Outcome) {
	defer func() {
		c.mu.Lock()
		delete(c.pending, state)
		c.mu.Unlock()
	}()

	frame, err := c.opener.Open(c.silentAuthorizeURL(state))
	if err != nil {
		c.logger.Warn("silent login frame failed to open", zap.Error(err))
		result <- OutcomeFailed
		return
	}

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	var outcome Outcome
	select {
	case msg := <-messages:
		outcome = c.apply(msg)
	case <-timer.C:
		c.logger.Info("silent login timed out", zap.Duration("after", c.timeout))
		outcome = OutcomeTimeout
	case <-ctx.Done():
		outcome = OutcomeTimeout
	}

	// Tear the frame down before reporting; a definitive message and the
	// timeout race, and whichever wins must leave nothing behind.
	if err := frame.Close(); err != nil {
		c.logger.Warn("silent login frame close failed", zap.Error(err))
	}
	result <- outcome
}

func (c *Channel) apply(msg Message) Outcome {
	switch msg.Kind {
	case KindSuccess:
		if err := c.store.SetCredential(msg.Credential); err != nil {
			c.logger.Error("failed to persist recovered credential", zap.Error(err))
			return OutcomeFailed
		}
		c.logger.Info("session recovered silently")
		return OutcomeRecovered
	case KindInteractionRequired:
		c.logger.Info("silent login requires interaction")
		return OutcomeInteractionRequired
	default:
		c.logger.Info("silent login failed", zap.String("error", msg.Error))
		return OutcomeFailed
	}
}

// silentAuthorizeURL parameterizes the provider flow to suppress any
// interactive prompt.
func (c *Channel) silentAuthorizeURL(state string) string {
	params := url.Values{}
	params.Set("client_id", c.clientID)
	params.Set("redirect_uri", c.redirectURI)
	params.Set("response_type", "code")
	params.Set("scope", "identify guilds")
	params.Set("prompt", "none")
	params.Set("state", state)
	return c.authorizeURL + "?" + params.Encode()
}
