package cli

import (
	"bytes"
	"errors"
	"fmt"
	"slices"

	"github.com/fatih/color"
	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/Arax734/bookshare-app-sub001/internal/store"
)

func newInspectCmd(opts *options) *cobra.Command {
	var (
		collection string
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Show document counts, or dump one collection",
		Long: `Open the store read-only and print how many documents each collection
holds. With --collection, print that collection's raw documents instead.

Examples:
  bookshare inspect
  bookshare inspect --collection bookExchanges --limit 5`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if collection != "" && !slices.Contains(store.Collections, collection) {
				return fmt.Errorf("unknown collection %q (one of %v)", collection, store.Collections)
			}

			s, err := store.Open(opts.cfg.Data.DBPath(), nil, store.Options{ReadOnly: true})
			if err != nil {
				return err
			}
			defer s.Close()

			out := cmd.OutOrStdout()
			if collection == "" {
				stats, err := s.Stats(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintln(out, color.New(color.Bold).Sprint("Collections"))
				for _, name := range store.Collections {
					fmt.Fprintf(out, "  %-14s %s\n", name, color.CyanString("%d", stats[name]))
				}
				return nil
			}

			shown := 0
			err = s.Dump(cmd.Context(), collection, func(id string, raw []byte) error {
				if limit > 0 && shown >= limit {
					return errStopDump
				}
				var pretty bytes.Buffer
				if err := json.Indent(&pretty, raw, "  ", "  "); err != nil {
					pretty.Reset()
					pretty.Write(raw)
				}
				fmt.Fprintf(out, "%s\n  %s\n", color.WhiteString(id), pretty.String())
				shown++
				return nil
			})
			if err != nil && !errors.Is(err, errStopDump) {
				return err
			}
			if shown == 0 {
				warn(out, "Collection %s is empty", collection)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&collection, "collection", "c", "", "Collection to dump")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum documents to dump, 0 for all")
	return cmd
}

var errStopDump = errors.New("stop dump")
