package main

import (
	"errors"
	"fmt"
	"net"
	"os"

	"tenant-console/internal/auth"
	"tenant-console/internal/callback"

	"github.com/spf13/cobra"
)

func passwordFrom(cmd *cobra.Command) (string, error) {
	pw, _ := cmd.Flags().GetString("password")
	if pw == "" {
		pw = os.Getenv("CONSOLE_PASSWORD")
	}
	if pw == "" {
		return "", errors.New("--password (or CONSOLE_PASSWORD) is required")
	}
	return pw, nil
}

func printIdentity(cmd *cobra.Command, id auth.Identity) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Signed in as %s\n", id.Email)
	fmt.Fprintf(out, "User ID:     %s\n", id.UserID)
	if id.GlobalRole != "" {
		fmt.Fprintf(out, "Role:        %s\n", id.GlobalRole)
	}
	if id.TenantID != "" {
		fmt.Fprintf(out, "Tenant:      %s\n", id.TenantID)
	}
}

func newLoginCmd(get func() *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with email and password, or through the OAuth provider",
		Example: `  console login --email a@b.com --password secret
  console login --oauth`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			if oauth, _ := cmd.Flags().GetBool("oauth"); oauth {
				return loginOAuth(cmd, a)
			}
			email, _ := cmd.Flags().GetString("email")
			if email == "" {
				return errors.New("--email is required")
			}
			pw, err := passwordFrom(cmd)
			if err != nil {
				return err
			}
			id, err := a.sess.Login(cmd.Context(), email, pw)
			if err != nil {
				return err
			}
			printIdentity(cmd, id)
			return nil
		},
	}
	cmd.Flags().String("email", "", "account email")
	cmd.Flags().String("password", "", "account password (or CONSOLE_PASSWORD)")
	cmd.Flags().Bool("oauth", false, "sign in through the browser")
	return cmd
}

func loginOAuth(cmd *cobra.Command, a *app) error {
	ln, err := net.Listen("tcp", a.cfg.CallbackAddr())
	if err != nil {
		return fmt.Errorf("listen for oauth redirect: %w", err)
	}
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Open this URL in your browser to sign in:")
	fmt.Fprintf(out, "  %s\n", a.cfg.Callback.OAuthStartURL)
	fmt.Fprintf(out, "Waiting for the redirect on http://%s%s ...\n", ln.Addr(), callback.Path)

	id, err := callback.NewHandler(a.sess, a.log).Serve(cmd.Context(), ln, a.cfg.Callback.Timeout)
	if err != nil {
		return err
	}
	printIdentity(cmd, id)
	return nil
}

func newRegisterCmd(get func() *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and sign in",
		RunE: func(cmd *cobra.Command, args []string) error {
			email, _ := cmd.Flags().GetString("email")
			role, _ := cmd.Flags().GetString("role")
			if email == "" {
				return errors.New("--email is required")
			}
			pw, err := passwordFrom(cmd)
			if err != nil {
				return err
			}
			id, err := get().sess.Register(cmd.Context(), email, pw, role)
			if err != nil {
				return err
			}
			printIdentity(cmd, id)
			return nil
		},
	}
	cmd.Flags().String("email", "", "account email")
	cmd.Flags().String("password", "", "account password (or CONSOLE_PASSWORD)")
	cmd.Flags().String("role", "USER", "global role: USER or ADMIN")
	return cmd
}

func newLogoutCmd(get func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			get().sess.Logout(cmd.Context())
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out.")
			return nil
		},
	}
}

func newWhoamiCmd(get func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the current identity without contacting the server",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, ok := get().sess.Current()
			if !ok {
				fmt.Fprintln(cmd.OutOrStdout(), "Not signed in.")
				return nil
			}
			printIdentity(cmd, id)
			return nil
		},
	}
}
