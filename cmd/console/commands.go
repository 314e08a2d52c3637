package main

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spec-kit/guild-console/internal/api"
	"github.com/spec-kit/guild-console/internal/config"
	"github.com/spec-kit/guild-console/internal/domain"
	"github.com/spec-kit/guild-console/internal/gate"
	"github.com/spec-kit/guild-console/internal/guildperm"
	"github.com/spec-kit/guild-console/internal/session"
	"github.com/spec-kit/guild-console/internal/tenant"
)

// console bundles the wired subsystems for command closures.
type console struct {
	cfg      *config.Config
	logger   *zap.Logger
	store    session.Store
	api      *api.Client
	provider *session.Provider
	resolver *guildperm.Resolver
	handoff  chan string
}

// printNavigator renders gate redirects on the terminal; the console has
// no browser history to rewrite, so "navigating" means telling the user
// where they ended up.
type printNavigator struct{}

func (printNavigator) Navigate(route string) {
	fmt.Printf("-> %s\n", route)
}

func newRootCmd(app *console) *cobra.Command {
	root := &cobra.Command{
		Use:           "console",
		Short:         "Guild administration console",
		Long:          "Session-aware console client for the guild administration dashboard.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newLoginCmd(app),
		newLogoutCmd(app),
		newWhoamiCmd(app),
		newGuildsCmd(app),
		newUseCmd(app),
		newOpenCmd(app),
	)
	return root
}

func newLoginCmd(app *console) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Sign in interactively through the identity provider",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("Open this URL in your browser to sign in:")
			fmt.Println("  " + app.interactiveAuthorizeURL())

			var token string
			select {
			case token = <-app.handoff:
			case <-time.After(5 * time.Minute):
				return fmt.Errorf("timed out waiting for sign-in")
			case <-cmd.Context().Done():
				return cmd.Context().Err()
			}

			state := app.provider.Bootstrap(cmd.Context(), session.Navigation{Route: "/", Token: token})
			if state.State != session.StateAuthenticated {
				return fmt.Errorf("sign-in did not produce a session")
			}
			fmt.Printf("Signed in as %s\n", state.Identity.Username)
			return nil
		},
	}
}

func newLogoutCmd(app *console) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and delete the local credential",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.provider.Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Println("Signed out.")
			return nil
		},
	}
}

func newWhoamiCmd(app *console) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the resolved session",
		RunE: func(cmd *cobra.Command, args []string) error {
			state := app.provider.Bootstrap(cmd.Context(), session.Navigation{Route: "/"})
			if state.State != session.StateAuthenticated {
				fmt.Println("Not signed in.")
				return nil
			}
			fmt.Printf("%s (%s)\n", state.Identity.Username, state.Identity.ID)
			if state.Identity.IsPlatformAdmin {
				fmt.Println("Platform admin.")
			}
			return nil
		},
	}
}

func newGuildsCmd(app *console) *cobra.Command {
	return &cobra.Command{
		Use:   "guilds",
		Short: "List guilds you can administer",
		RunE: func(cmd *cobra.Command, args []string) error {
			state := app.provider.Bootstrap(cmd.Context(), session.Navigation{Route: "/guilds"})
			if state.State != session.StateAuthenticated {
				fmt.Println("Not signed in.")
				return nil
			}
			guilds, err := app.api.Guilds(cmd.Context())
			if err != nil {
				return err
			}
			if len(guilds) == 0 {
				fmt.Println("No guilds yet. Invite the bot to a server to get started.")
				return nil
			}
			for _, guild := range guilds {
				fmt.Printf("%-20s %-24s %s\n", guild.ID, guild.Name,
					domain.LevelFromClaim(guild.PermissionClaim))
			}
			return nil
		},
	}
}

func newUseCmd(app *console) *cobra.Command {
	return &cobra.Command{
		Use:   "use [guild-id]",
		Short: "Switch the active guild",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			requested := ""
			if len(args) == 1 {
				requested = args[0]
			}
			active, state, err := app.resolveActive(cmd.Context(), requested)
			if err != nil {
				return err
			}
			if state.State != session.StateAuthenticated {
				fmt.Println("Not signed in.")
				return nil
			}
			if active == "" {
				fmt.Println("No guilds yet. Invite the bot to a server to get started.")
				return nil
			}
			fmt.Printf("Active guild: %s\n", active)
			return nil
		},
	}
}

func newOpenCmd(app *console) *cobra.Command {
	var guildID string
	var requireName string

	cmd := &cobra.Command{
		Use:   "open [surface]",
		Short: "Check whether a protected surface would render",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			required, err := domain.ParseLevel(requireName)
			if err != nil {
				return err
			}

			app.provider.Bootstrap(cmd.Context(), session.Navigation{Route: args[0]})

			active := guildID
			if active == "" && required > domain.LevelUser {
				active, _, err = app.resolveActive(cmd.Context(), "")
				if err != nil {
					return err
				}
			}
			if active != "" {
				app.resolver.Prime(cmd.Context(), active)
			}

			g := gate.NewGate(app.provider, app.resolver, printNavigator{}, app.logger)
			decision := g.Evaluate(required, active)
			switch decision {
			case gate.Allow:
				fmt.Printf("%s: allowed\n", args[0])
			case gate.Checking:
				fmt.Printf("%s: still checking\n", args[0])
			default:
				fmt.Printf("%s: denied (%s)\n", args[0], decision)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&guildID, "guild", "", "guild the surface is scoped to")
	cmd.Flags().StringVar(&requireName, "require", "AUTHORIZED", "required permission level")
	return cmd
}

func (app *console) resolveActive(ctx context.Context, requested string) (string, session.SessionState, error) {
	state := app.provider.Bootstrap(ctx, session.Navigation{Route: "/"})
	if state.State != session.StateAuthenticated {
		return "", state, nil
	}
	guilds, err := app.api.Guilds(ctx)
	if err != nil {
		return "", state, err
	}
	active, ok := tenant.ResolveActive(guilds, requested, state.Identity, app.store, app.logger)
	if !ok {
		return "", state, nil
	}
	return active, state, nil
}

func (app *console) interactiveAuthorizeURL() string {
	params := url.Values{}
	params.Set("client_id", app.cfg.Auth.ClientID)
	params.Set("redirect_uri", "http://"+app.cfg.Auth.LoopbackAddr()+"/auth/landing")
	params.Set("response_type", "code")
	params.Set("scope", "identify guilds")
	return app.cfg.Auth.AuthorizeURL + "?" + params.Encode()
}
