package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Arax734/bookshare-app-sub001/internal/catalog/cache"
)

func newCacheCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the catalog detail cache",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "purge",
		Short: "Remove expired catalog entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := cache.Open(opts.cfg.Data.CachePath(), opts.cfg.Catalog.CacheTTL, nil)
			if err != nil {
				return err
			}
			defer c.Close()

			removed, err := c.Purge(cmd.Context())
			if err != nil {
				return err
			}
			remaining, err := c.Len(cmd.Context())
			if err != nil {
				return fmt.Errorf("count entries: %w", err)
			}
			ok(cmd.OutOrStdout(), "Removed %d expired entries, %d remain", removed, remaining)
			return nil
		},
	})
	return cmd
}
