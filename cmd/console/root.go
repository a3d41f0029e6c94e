package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"tenant-console/internal/auth"
	"tenant-console/internal/gateway"
	"tenant-console/internal/invitation"
	"tenant-console/internal/session"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

var errNotLoggedIn = errors.New("not logged in, run `console login` first")

// console is one invocation of the command line together with the app it opened.
type console struct {
	root *cobra.Command
	app  *app
}

func newConsole(stdout, stderr io.Writer) *console {
	c := &console{}
	var cfgPath string

	root := &cobra.Command{
		Use:           "console",
		Short:         "Tenant console: sign in, manage workspaces, projects and invitations",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Gin's debug route dump would interleave with command output.
			gin.SetMode(gin.ReleaseMode)
			if cfgPath == "" {
				cfgPath = os.Getenv("CONSOLE_CONFIG")
			}
			a, err := newApp(cmd.Context(), cfgPath, stderr)
			if err != nil {
				return err
			}
			c.app = a
			return nil
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.PersistentFlags().StringVar(&cfgPath, "config", "", "config file (yaml); defaults and CONSOLE_* env vars apply without one")

	get := func() *app { return c.app }
	root.AddCommand(
		newLoginCmd(get),
		newRegisterCmd(get),
		newLogoutCmd(get),
		newWhoamiCmd(get),
		newPasswordCmd(get),
		newTwoFactorCmd(get),
		newTenantsCmd(get),
		newInviteCmd(get),
		newInvitationsCmd(get),
		newProjectsCmd(get),
		newDashboardCmd(get),
		newActivityCmd(get),
	)
	c.root = root
	return c
}

// Execute runs the command line and closes the app whether or not the command
// succeeded. Cobra skips post-run hooks after a RunE error.
func (c *console) Execute(ctx context.Context, args ...string) error {
	defer c.close()
	if args != nil {
		c.root.SetArgs(args)
	}
	return c.root.ExecuteContext(ctx)
}

func (c *console) close() {
	if c.app != nil {
		c.app.Close()
	}
}

// userMessage turns a command error into one line for the terminal.
func userMessage(err error) string {
	var authErr *session.AuthError
	var apiErr *gateway.APIError
	var te *gateway.TransportError
	switch {
	case errors.As(err, &authErr):
		return authErr.Message
	case errors.Is(err, auth.ErrInvalidToken):
		return "the server returned a token without a user id; no session was created"
	case gateway.IsSessionExpired(err):
		return "session expired, run `console login` to sign in again"
	case errors.Is(err, gateway.ErrNoSession):
		return errNotLoggedIn.Error()
	case errors.Is(err, invitation.ErrExpired):
		return "this invitation has expired"
	case errors.Is(err, invitation.ErrAlreadyResolved):
		return "this invitation was already accepted or rejected"
	case errors.Is(err, invitation.ErrEmailMismatch):
		return "this invitation is addressed to a different email"
	case errors.Is(err, invitation.ErrNotFound):
		return "invitation not found"
	case errors.As(err, &te):
		return fmt.Sprintf("could not reach the service (%s)", te.Err)
	case errors.As(err, &apiErr) && apiErr.Message != "":
		return apiErr.Message
	default:
		return strings.TrimSpace(err.Error())
	}
}
