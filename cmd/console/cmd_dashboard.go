package main

import (
	"fmt"
	"sort"
	"time"

	"tenant-console/internal/audit"
	"tenant-console/internal/dashboard"

	"github.com/spf13/cobra"
)

func newDashboardCmd(get func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Workspaces, pending invitations and your projects at a glance",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			if err := a.requireSession(); err != nil {
				return err
			}
			v, err := a.dashboard.Load(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			id, _ := a.sess.Current()
			fmt.Fprintf(out, "Welcome back, %s\n\n", id.Email)

			if len(v.Invitations) > 0 {
				fmt.Fprintf(out, "Pending invitations (%d)\n", len(v.Invitations))
				printInvitations(cmd, v.Invitations)
				fmt.Fprintln(out)
			}

			fmt.Fprintln(out, "Workspaces")
			printTenants(cmd, v.Tenants)
			for _, t := range v.Tenants {
				if ps := v.Projects(t.ID); len(ps) > 0 {
					fmt.Fprintf(out, "\nYour projects in %s\n", t.Name)
					printProjects(cmd, ps)
				}
			}

			sections := make([]string, 0, len(v.Errors))
			for s := range v.Errors {
				sections = append(sections, string(s))
			}
			sort.Strings(sections)
			for _, s := range sections {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: could not load %s: %s\n", s, userMessage(v.Errors[dashboard.Section(s)]))
			}
			return nil
		},
	}
}

func newActivityCmd(get func() *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "activity",
		Short: "Summarize sign-ins and invitation decisions recorded on this machine",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			id, ok := a.sess.Current()
			if !ok {
				return errNotLoggedIn
			}
			since, _ := cmd.Flags().GetDuration("since")
			limit, _ := cmd.Flags().GetInt("limit")
			now := time.Now()

			sum, err := a.audit.Summary(cmd.Context(), audit.SummaryRequest{
				UserID: id.UserID,
				Range:  audit.TimeRange{From: now.Add(-since), To: now.Add(time.Second)},
			})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Activity for %s over the last %s\n", id.Email, since)
			fmt.Fprintf(out, "  sign-ins:              %d\n", sum.SessionsEstablished)
			fmt.Fprintf(out, "  sign-outs:             %d\n", sum.SessionsEnded)
			fmt.Fprintf(out, "  expired sessions:      %d\n", sum.SessionsExpired)
			fmt.Fprintf(out, "  invitations accepted:  %d\n", sum.InvitationsAccepted)
			fmt.Fprintf(out, "  invitations rejected:  %d\n", sum.InvitationsRejected)

			events, err := a.audit.List(cmd.Context(), audit.Filter{UserID: id.UserID, Limit: limit})
			if err != nil {
				return err
			}
			if len(events) > 0 {
				fmt.Fprintln(out, "\nRecent events")
			}
			for _, e := range events {
				fmt.Fprintf(out, "  %s  %-20s %s\n", formatTime(e.CreatedAt), e.Type, e.Message)
			}
			return nil
		},
	}
	cmd.Flags().Duration("since", 7*24*time.Hour, "summary window")
	cmd.Flags().Int("limit", 10, "recent events to show")
	return cmd
}
