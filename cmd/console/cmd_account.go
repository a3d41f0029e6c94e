package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newPasswordCmd(get func() *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "password",
		Short: "Recover a forgotten password",
	}

	forgot := &cobra.Command{
		Use:   "forgot EMAIL",
		Short: "Email a password reset link",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := get().account.ForgotPassword(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "If %s has an account, a reset link is on its way.\n", args[0])
			return nil
		},
	}

	reset := &cobra.Command{
		Use:     "reset TOKEN",
		Short:   "Set a new password with the token from the reset link",
		Args:    cobra.ExactArgs(1),
		Example: `  CONSOLE_PASSWORD=n3w-secret console password reset rst-123`,
		RunE: func(cmd *cobra.Command, args []string) error {
			pw, err := passwordFrom(cmd)
			if err != nil {
				return err
			}
			if err := get().account.ResetPassword(cmd.Context(), args[0], pw); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Password updated. Run `console login` to sign in.")
			return nil
		},
	}
	reset.Flags().String("password", "", "new password (or set CONSOLE_PASSWORD)")

	cmd.AddCommand(forgot, reset)
	return cmd
}

func newTwoFactorCmd(get func() *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "2fa",
		Short: "Manage two-factor authentication for the signed-in account",
	}

	setup := &cobra.Command{
		Use:   "setup",
		Short: "Start enrollment and print the authenticator secret",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := get().requireSession(); err != nil {
				return err
			}
			s, err := get().account.SetupTwoFactor(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Secret: %s\n", s.Secret)
			if s.QRCodeURL != "" {
				fmt.Fprintf(out, "QR:     %s\n", s.QRCodeURL)
			}
			fmt.Fprintln(out, "Add it to your authenticator app, then run `console 2fa enable CODE`.")
			return nil
		},
	}

	enable := &cobra.Command{
		Use:   "enable CODE",
		Short: "Turn two-factor on with a code from the authenticator app",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := get().requireSession(); err != nil {
				return err
			}
			if err := get().account.EnableTwoFactor(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Two-factor authentication enabled.")
			return nil
		},
	}

	verify := &cobra.Command{
		Use:   "verify CODE",
		Short: "Check a code against the enrolled authenticator",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := get().requireSession(); err != nil {
				return err
			}
			if err := get().account.VerifyTwoFactor(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Code accepted.")
			return nil
		},
	}

	disable := &cobra.Command{
		Use:   "disable",
		Short: "Turn two-factor off; asks for the account password",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := get().requireSession(); err != nil {
				return err
			}
			pw, err := passwordFrom(cmd)
			if err != nil {
				return fmt.Errorf("disabling two-factor needs the account password: %w", err)
			}
			if err := get().account.DisableTwoFactor(cmd.Context(), pw); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Two-factor authentication disabled.")
			return nil
		},
	}
	disable.Flags().String("password", "", "account password (or set CONSOLE_PASSWORD)")

	cmd.AddCommand(setup, enable, verify, disable)
	return cmd
}
