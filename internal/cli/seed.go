package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Arax734/bookshare-app-sub001/internal/domain"
	domainerrors "github.com/Arax734/bookshare-app-sub001/internal/errors"
	"github.com/Arax734/bookshare-app-sub001/internal/id"
	"github.com/Arax734/bookshare-app-sub001/internal/service"
	"github.com/Arax734/bookshare-app-sub001/internal/store"
)

type seedUser struct {
	identity domain.Identity
	owned    []string
	desired  []string
	reviews  map[string]int
}

// demoUsers are three users around well-known catalog records.
var demoUsers = []seedUser{
	{
		identity: domain.Identity{UID: "demo-alice", Email: "alice@example.com", DisplayName: "Alice"},
		owned:    []string{"1", "2"},
		reviews:  map[string]int{"1": 9, "3": 8},
	},
	{
		identity: domain.Identity{UID: "demo-bob", Email: "bob@example.com", DisplayName: "Bob"},
		owned:    []string{"3"},
		desired:  []string{"1"},
		reviews:  map[string]int{"1": 7, "4": 4},
	},
	{
		identity: domain.Identity{UID: "demo-carol", Email: "carol@example.com", DisplayName: "Carol"},
		owned:    []string{"4"},
		reviews:  map[string]int{"2": 10},
	},
}

func newSeedCmd(opts *options) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Populate the store with demo users, libraries and exchanges",
		Long: `Create three demo users with owned books, reviews, a contact link,
a pending invitation and a pending exchange.

The server must not be running: badger allows a single writer process.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := store.New(opts.cfg.Data.DBPath(), nil)
			if err != nil {
				return err
			}
			defer s.Close()

			ctx := cmd.Context()
			stats, err := s.Stats(ctx)
			if err != nil {
				return err
			}
			if stats[store.CollectionUsers] > 0 && !force {
				warn(cmd.OutOrStdout(), "Store already has %d users; use --force to seed anyway", stats[store.CollectionUsers])
				return nil
			}

			if err := seed(ctx, s); err != nil {
				return err
			}
			ok(cmd.OutOrStdout(), "Seeded %d users into %s", len(demoUsers), color.CyanString(opts.cfg.Data.DBPath()))
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Seed even if the store already has users")
	return cmd
}

func seed(ctx context.Context, s *store.Store) error {
	logger := slog.New(slog.DiscardHandler)
	users := service.NewUserService(s, nil, nil, logger)
	library := service.NewLibraryService(s, nil, logger)
	reviews := service.NewReviewService(s, logger)
	contacts := service.NewContactService(s, nil, logger)

	for _, u := range demoUsers {
		if _, err := users.Ensure(ctx, &u.identity); err != nil {
			return fmt.Errorf("create user %s: %w", u.identity.UID, err)
		}
		for _, bookID := range u.owned {
			if err := ensureListed(ctx, library, u.identity.UID, domain.ListOwned, bookID); err != nil {
				return err
			}
		}
		for _, bookID := range u.desired {
			if err := ensureListed(ctx, library, u.identity.UID, domain.ListDesired, bookID); err != nil {
				return err
			}
		}
		for bookID, rating := range u.reviews {
			_, err := reviews.Create(ctx, u.identity.UID, bookID, service.ReviewRequest{Rating: rating})
			if err != nil && !isConflict(err) {
				return fmt.Errorf("review %s by %s: %w", bookID, u.identity.UID, err)
			}
		}
	}

	alice, bob, carol := demoUsers[0].identity.UID, demoUsers[1].identity.UID, demoUsers[2].identity.UID

	if _, err := library.SetForExchange(ctx, alice, "2", true); err != nil {
		return fmt.Errorf("offer book: %w", err)
	}

	edge, err := contacts.Invite(ctx, alice, bob)
	switch {
	case err == nil:
		if _, err := contacts.Accept(ctx, edge.ID, bob); err != nil {
			return fmt.Errorf("accept contact: %w", err)
		}
	case !isConflict(err):
		return fmt.Errorf("invite contact: %w", err)
	}
	if _, err := contacts.Invite(ctx, carol, alice); err != nil && !isConflict(err) {
		return fmt.Errorf("invite contact: %w", err)
	}

	// Written directly: proposing through the service would resolve book
	// details against the catalog.
	ex := &domain.Exchange{
		ID:           id.MustGenerate(id.PrefixExchange),
		UserID:       bob,
		ContactID:    alice,
		Status:       domain.ExchangePending,
		UserBooks:    []domain.BookRef{domain.Unresolved("3")},
		ContactBooks: []domain.BookRef{domain.Unresolved("2")},
		CreatedAt:    time.Now(),
	}
	if err := s.Exchanges.Insert(ctx, ex); err != nil {
		return fmt.Errorf("create exchange: %w", err)
	}
	return nil
}

// ensureListed adds bookID to the list, undoing the toggle if it was
// already there.
func ensureListed(ctx context.Context, library *service.LibraryService, userID string, list domain.LibraryList, bookID string) error {
	active, err := library.Toggle(ctx, userID, list, bookID)
	if err != nil {
		return fmt.Errorf("%s %s for %s: %w", list, bookID, userID, err)
	}
	if !active {
		if _, err := library.Toggle(ctx, userID, list, bookID); err != nil {
			return fmt.Errorf("%s %s for %s: %w", list, bookID, userID, err)
		}
	}
	return nil
}

func isConflict(err error) bool {
	return errors.Is(err, domainerrors.ErrConflict)
}
