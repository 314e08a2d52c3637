package silentauth

import (
	"runtime/debug"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/guild-console/internal/config"
)

// Listener is the loopback HTTP surface the identity provider reports back
// to. It carries two routes: the silent-login callback feeding the side
// channel, and the interactive landing that consumes the one-time token
// handoff. One listener exists per client run.
type Listener struct {
	app    *fiber.App
	addr   string
	logger *zap.Logger
}

// TokenHandoff receives the one-time credential from the interactive
// landing. The token is consumed here and never rendered back, so a
// reload of the landing cannot re-submit it.
type TokenHandoff func(token string)

// NewListener wires the loopback routes. messages is registered once as
// the provider message sink; handoff once for the interactive landing.
func NewListener(cfg config.AuthConfig, messages func(Message), handoff TokenHandoff, logger *zap.Logger) *Listener {
	// Immutable: delivered messages outlive the handler, and fasthttp
	// reuses request buffers between requests.
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		Immutable:             true,
	})
	app.Use(recoverMiddleware(logger))

	app.Get("/auth/silent/callback", func(c *fiber.Ctx) error {
		msg := Message{
			State:      c.Query("state"),
			Credential: c.Query("token"),
			Error:      c.Query("error"),
		}
		switch c.Query("result") {
		case "success":
			msg.Kind = KindSuccess
		case "interaction_required":
			msg.Kind = KindInteractionRequired
		default:
			msg.Kind = KindFailed
		}
		messages(msg)
		c.Set("Content-Type", "text/html; charset=utf-8")
		return c.SendString("<html><body>Sign-in check finished. You can close this window.</body></html>")
	})

	app.Get("/auth/landing", func(c *fiber.Ctx) error {
		if token := c.Query("token"); token != "" {
			handoff(token)
		}
		// Respond without the token so nothing visible retains it.
		c.Set("Content-Type", "text/html; charset=utf-8")
		return c.SendString("<html><body>Signed in. You can close this window and return to the console.</body></html>")
	})

	return &Listener{app: app, addr: cfg.LoopbackAddr(), logger: logger}
}

// Start serves the loopback listener until Shutdown.
func (l *Listener) Start() error {
	l.logger.Info("loopback listener starting", zap.String("addr", l.addr))
	return l.app.Listen(l.addr)
}

// Shutdown stops the listener.
func (l *Listener) Shutdown() error {
	return l.app.Shutdown()
}

func recoverMiddleware(logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) (err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic recovered",
					zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
				err = c.SendStatus(fiber.StatusInternalServerError)
			}
		}()
		return c.Next()
	}
}
