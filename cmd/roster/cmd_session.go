package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newLoginCmd(opts *rootOptions) *cobra.Command {
	var username, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Start a session",
		Long: `Starts a session that later commands reuse until "roster logout".

Any non-empty username and password pair is accepted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), opts, func(ctx context.Context, a *app) error {
				user, err := a.svc.Login(ctx, username, password)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s (%s)\n", user.Username, user.Name)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "username")
	cmd.Flags().StringVarP(&password, "password", "p", "", "password")
	return cmd
}

func newLogoutCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the current session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), opts, func(ctx context.Context, a *app) error {
				if err := a.svc.Logout(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
				return nil
			})
		},
	}
}

func newWhoamiCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), opts, func(_ context.Context, a *app) error {
				user, ok := a.svc.CurrentUser()
				if !ok {
					fmt.Fprintln(cmd.OutOrStdout(), "Not logged in")
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", user.Username, user.Name)
				return nil
			})
		},
	}
}
