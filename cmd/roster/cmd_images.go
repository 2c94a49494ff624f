package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newPruneImagesCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "prune-images",
		Short: "Delete stored profile images no employee references",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), opts, func(ctx context.Context, a *app) error {
				ctx, err := a.requireLogin(ctx)
				if err != nil {
					return err
				}
				removed, err := a.svc.PruneImages(ctx)
				out := cmd.OutOrStdout()
				for _, key := range removed {
					fmt.Fprintf(out, "removed %s\n", key)
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Pruned %d image(s)\n", len(removed))
				return nil
			})
		},
	}
}
