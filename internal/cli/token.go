package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Arax734/bookshare-app-sub001/internal/config"
	"github.com/Arax734/bookshare-app-sub001/internal/di/providers"
	"github.com/Arax734/bookshare-app-sub001/internal/domain"
)

func newTokenCmd(opts *options) *cobra.Command {
	var (
		ident domain.Identity
		quiet bool
	)

	cmd := &cobra.Command{
		Use:   "token <uid>",
		Short: "Mint a session token for the local identity provider",
		Long: `Mint a PASETO session token the server accepts when AUTH_PROVIDER=local.
Pass it as "Authorization: Bearer <token>" or post it to /api/auth/session.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.cfg.Auth.Provider != config.AuthProviderLocal {
				return fmt.Errorf("tokens can only be minted for the local provider, configured provider is %q", opts.cfg.Auth.Provider)
			}

			tokens, err := providers.TokenServiceFromConfig(opts.cfg)
			if err != nil {
				return err
			}

			ident.UID = args[0]
			token, err := tokens.Issue(ident)
			if err != nil {
				return err
			}

			if quiet {
				fmt.Fprintln(cmd.OutOrStdout(), token)
				return nil
			}
			ok(cmd.ErrOrStderr(), "Token for %s valid for %s", color.CyanString(ident.UID), tokens.TTL())
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&ident.Email, "email", "", "Email claim")
	cmd.Flags().StringVar(&ident.DisplayName, "name", "", "Display name claim")
	cmd.Flags().StringVar(&ident.PhotoURL, "photo", "", "Photo URL claim")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Print only the token")
	return cmd
}
