package service

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/Arax734/bookshare-app-sub001/internal/catalog"
	"github.com/Arax734/bookshare-app-sub001/internal/domain"
	domainerrors "github.com/Arax734/bookshare-app-sub001/internal/errors"
	"github.com/Arax734/bookshare-app-sub001/internal/normalize"
	"github.com/Arax734/bookshare-app-sub001/internal/store"
)

const (
	// topCategories caps each ranked category list.
	topCategories = 3
	// booksPerCategory is how many candidates a category returns.
	booksPerCategory = 10
	// DefaultFilteredLimit caps filtered browse results.
	DefaultFilteredLimit = 12
	// maxUpstreamLimit bounds over-fetching to make room for exclusions.
	maxUpstreamLimit = 100
	// decadeFetchLimit is the candidate pool scanned for a decade.
	decadeFetchLimit = 50
)

// Recommendation errors carry the exact client-facing messages.
var (
	ErrUserIDRequired      = domainerrors.Validation("User ID is required")
	ErrMissingParameters   = domainerrors.Validation("Missing required parameters")
	ErrInvalidCategoryType = domainerrors.Validation("Invalid category type")
)

// CategoryItem names one preferred category value.
type CategoryItem struct {
	Category string `json:"category"`
}

// Categories are a user's preferred genres, authors and languages, most
// frequent first. Values without unreviewed candidate books are left out.
type Categories struct {
	ByGenre    []CategoryItem `json:"byGenre"`
	ByAuthor   []CategoryItem `json:"byAuthor"`
	ByLanguage []CategoryItem `json:"byLanguage"`
}

// rankedCategories are the top values per dimension before candidates are
// looked up.
type rankedCategories struct {
	genres    []string
	authors   []string
	languages []string
}

// CategoryBooks pairs a category value with candidate books.
type CategoryBooks struct {
	Category string        `json:"category"`
	Books    []domain.Book `json:"books"`
}

// RecommendationGroups holds candidate books per category dimension.
type RecommendationGroups struct {
	ByGenre    []CategoryBooks `json:"byGenre"`
	ByAuthor   []CategoryBooks `json:"byAuthor"`
	ByLanguage []CategoryBooks `json:"byLanguage"`
	ByDecade   []CategoryBooks `json:"byDecade"`
}

// ReviewStats summarizes a user's reviewing activity.
type ReviewStats struct {
	AverageRating    *float64 `json:"averageRating"`
	TotalReviews     int      `json:"totalReviews"`
	HighRatedReviews int      `json:"highRatedReviews"`
}

// Recommendations is the full recommendation view of a user.
type Recommendations struct {
	Recommendations RecommendationGroups `json:"recommendations"`
	Stats           ReviewStats          `json:"stats"`
}

// FilterParams select books for filtered browse. Any combination of
// genre, author and language may be set.
type FilterParams struct {
	Genre    string
	Author   string
	Language string
	Limit    int
}

// RecommendationService derives preferences from high-rated reviews and
// finds unreviewed candidate books in the catalog.
type RecommendationService struct {
	store   *store.Store
	catalog Catalog
	ratings *RatingService
	logger  *slog.Logger
}

// NewRecommendationService creates a new recommendation service.
func NewRecommendationService(store *store.Store, catalog Catalog, ratings *RatingService, logger *slog.Logger) *RecommendationService {
	return &RecommendationService{
		store:   store,
		catalog: catalog,
		ratings: ratings,
		logger:  logger,
	}
}

// tasteProfile is what a user's reviews say about them.
type tasteProfile struct {
	reviews   []*domain.Review
	highRated []*domain.Review
	// liked holds resolved high-rated books in first-seen order.
	liked    []domain.Book
	reviewed map[string]struct{}
}

func (s *RecommendationService) loadProfile(ctx context.Context, userID string) (*tasteProfile, error) {
	reviews, err := s.store.ReviewsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load reviews of %s: %w", userID, err)
	}

	p := &tasteProfile{
		reviews:  reviews,
		reviewed: make(map[string]struct{}, len(reviews)),
	}
	var likedIDs []string
	for _, r := range reviews {
		bookID := normalize.BookID(r.BookID)
		p.reviewed[bookID] = struct{}{}
		if r.IsHighRated() {
			p.highRated = append(p.highRated, r)
			likedIDs = append(likedIDs, bookID)
		}
	}
	likedIDs = normalize.BookIDs(likedIDs)

	resolved := resolveBooks(ctx, s.catalog, likedIDs, s.logger)
	for _, bookID := range likedIDs {
		if b, ok := resolved[bookID]; ok {
			p.liked = append(p.liked, b)
		}
	}
	return p, nil
}

func (p *tasteProfile) categories() rankedCategories {
	return rankedCategories{
		genres:    rankValues(p.liked, domain.CategoryGenre.Value),
		authors:   rankValues(p.liked, domain.CategoryAuthor.Value),
		languages: rankValues(p.liked, domain.CategoryLanguage.Value),
	}
}

func (p *tasteProfile) decades() []string {
	return rankValues(p.liked, domain.Book.Decade)
}

func (p *tasteProfile) excluded(bookID string) bool {
	_, ok := p.reviewed[normalize.BookID(bookID)]
	return ok
}

// rankValues tallies value(book) over books, skipping empty values, and
// returns the top values by descending count. Ties keep first-seen order.
// The result is never nil.
func rankValues(books []domain.Book, value func(domain.Book) string) []string {
	type tally struct {
		value string
		count int
	}
	var tallies []*tally
	index := make(map[string]*tally)

	for _, b := range books {
		v := value(b)
		if v == "" {
			continue
		}
		t, ok := index[v]
		if !ok {
			t = &tally{value: v}
			index[v] = t
			tallies = append(tallies, t)
		}
		t.count++
	}

	slices.SortStableFunc(tallies, func(a, b *tally) int {
		return b.count - a.count
	})

	out := make([]string, 0, min(topCategories, len(tallies)))
	for _, t := range tallies {
		if len(out) == topCategories {
			break
		}
		out = append(out, t.value)
	}
	return out
}

// GetCategories returns the user's top genres, authors and languages from
// their high-rated reviews. Books that fail to resolve are skipped, and a
// value is listed only if it has unreviewed candidate books.
func (s *RecommendationService) GetCategories(ctx context.Context, userID string) (*Categories, error) {
	if userID == "" {
		return nil, ErrUserIDRequired
	}

	p, err := s.loadProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	groups := s.candidateGroups(ctx, p, false)
	return &Categories{
		ByGenre:    categoryItems(groups.ByGenre),
		ByAuthor:   categoryItems(groups.ByAuthor),
		ByLanguage: categoryItems(groups.ByLanguage),
	}, nil
}

// GetBooksForCategory returns candidate books for one category the user
// has not reviewed, with ratings attached.
func (s *RecommendationService) GetBooksForCategory(ctx context.Context, userID, categoryType, category string) ([]domain.Book, error) {
	if userID == "" || categoryType == "" || category == "" {
		return nil, ErrMissingParameters
	}
	ct, ok := domain.ParseCategoryType(categoryType)
	if !ok {
		return nil, ErrInvalidCategoryType
	}

	reviewed, err := s.reviewedSet(ctx, userID)
	if err != nil {
		return nil, err
	}

	books := s.booksFor(ctx, ct, category, len(reviewed), func(id string) bool {
		_, ok := reviewed[id]
		return ok
	})
	s.ratings.AttachRatings(ctx, books)
	return books, nil
}

// Filtered returns up to Limit (default 12) unreviewed books matching every
// given filter, with ratings attached.
func (s *RecommendationService) Filtered(ctx context.Context, userID string, params FilterParams) ([]domain.Book, error) {
	if userID == "" {
		return nil, ErrUserIDRequired
	}
	limit := params.Limit
	if limit <= 0 {
		limit = DefaultFilteredLimit
	}

	reviewed, err := s.reviewedSet(ctx, userID)
	if err != nil {
		return nil, err
	}

	candidates := s.catalog.FetchSimilar(ctx, catalog.SimilarFilters{
		Genre:    params.Genre,
		Author:   params.Author,
		Language: params.Language,
		Limit:    min(limit+len(reviewed), maxUpstreamLimit),
	})

	books := filterCandidates(candidates, limit, func(b domain.Book) bool {
		if _, ok := reviewed[normalize.BookID(string(b.ID))]; ok {
			return false
		}
		return params.Author == "" || normalize.AuthorMatches(b.Author, params.Author)
	})
	s.ratings.AttachRatings(ctx, books)
	return books, nil
}

// GetRecommendations builds the full recommendation view: candidate books
// for each top category and decade, plus review statistics.
func (s *RecommendationService) GetRecommendations(ctx context.Context, userID string) (*Recommendations, error) {
	if userID == "" {
		return nil, ErrUserIDRequired
	}

	p, err := s.loadProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	groups := s.candidateGroups(ctx, p, true)

	for _, list := range [][]CategoryBooks{groups.ByGenre, groups.ByAuthor, groups.ByLanguage, groups.ByDecade} {
		for i := range list {
			s.ratings.AttachRatings(ctx, list[i].Books)
		}
	}

	return &Recommendations{
		Recommendations: groups,
		Stats:           reviewStats(p),
	}, nil
}

// candidateGroups fetches candidate books for each top category value, and
// for each liked decade when withDecades is set. Values without candidates
// are dropped.
func (s *RecommendationService) candidateGroups(ctx context.Context, p *tasteProfile, withDecades bool) RecommendationGroups {
	cats := p.categories()

	type job struct {
		dest *[]CategoryBooks
		slot int
		run  func() []domain.Book
		name string
	}

	groups := RecommendationGroups{
		ByGenre:    make([]CategoryBooks, len(cats.genres)),
		ByAuthor:   make([]CategoryBooks, len(cats.authors)),
		ByLanguage: make([]CategoryBooks, len(cats.languages)),
	}

	var jobs []job
	add := func(dest *[]CategoryBooks, ct domain.CategoryType, values []string) {
		for i, v := range values {
			jobs = append(jobs, job{dest: dest, slot: i, name: v, run: func() []domain.Book {
				return s.booksFor(ctx, ct, v, len(p.reviewed), p.excluded)
			}})
		}
	}
	add(&groups.ByGenre, domain.CategoryGenre, cats.genres)
	add(&groups.ByAuthor, domain.CategoryAuthor, cats.authors)
	add(&groups.ByLanguage, domain.CategoryLanguage, cats.languages)

	if withDecades {
		decades := p.decades()
		groups.ByDecade = make([]CategoryBooks, len(decades))
		topGenre := first(cats.genres)
		topLanguage := first(cats.languages)
		for i, d := range decades {
			jobs = append(jobs, job{dest: &groups.ByDecade, slot: i, name: d, run: func() []domain.Book {
				return s.booksForDecade(ctx, d, topGenre, topLanguage, p.excluded)
			}})
		}
	}

	var g errgroup.Group
	g.SetLimit(fanoutLimit)
	for _, j := range jobs {
		g.Go(func() error {
			(*j.dest)[j.slot] = CategoryBooks{Category: j.name, Books: j.run()}
			return nil
		})
	}
	_ = g.Wait()

	groups.ByGenre = nonEmpty(groups.ByGenre)
	groups.ByAuthor = nonEmpty(groups.ByAuthor)
	groups.ByLanguage = nonEmpty(groups.ByLanguage)
	groups.ByDecade = nonEmpty(groups.ByDecade)
	return groups
}

// booksFor fetches candidates for one category, dropping excluded and
// duplicate books. The upstream query over-fetches by the number of
// possible exclusions.
func (s *RecommendationService) booksFor(ctx context.Context, ct domain.CategoryType, value string, exclusions int, excluded func(string) bool) []domain.Book {
	f := catalog.SimilarFilters{Limit: min(booksPerCategory+exclusions, maxUpstreamLimit)}
	switch ct {
	case domain.CategoryGenre:
		f.Genre = value
	case domain.CategoryAuthor:
		f.Author = value
	case domain.CategoryLanguage:
		f.Language = value
	}

	candidates := s.catalog.FetchSimilar(ctx, f)
	return filterCandidates(candidates, booksPerCategory, func(b domain.Book) bool {
		return !excluded(normalize.BookID(string(b.ID)))
	})
}

// booksForDecade browses the user's top genre (or language) and keeps books
// published in the decade.
func (s *RecommendationService) booksForDecade(ctx context.Context, decade, genre, language string, excluded func(string) bool) []domain.Book {
	if genre == "" && language == "" {
		return []domain.Book{}
	}
	candidates := s.catalog.FetchSimilar(ctx, catalog.SimilarFilters{
		Genre:    genre,
		Language: language,
		Limit:    decadeFetchLimit,
	})
	return filterCandidates(candidates, booksPerCategory, func(b domain.Book) bool {
		return b.Decade() == decade && !excluded(normalize.BookID(string(b.ID)))
	})
}

func (s *RecommendationService) reviewedSet(ctx context.Context, userID string) (map[string]struct{}, error) {
	reviews, err := s.store.ReviewsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load reviews of %s: %w", userID, err)
	}
	set := make(map[string]struct{}, len(reviews))
	for _, r := range reviews {
		set[normalize.BookID(r.BookID)] = struct{}{}
	}
	return set, nil
}

// filterCandidates keeps books accepted by keep, deduplicated by padded id,
// up to limit. The result is never nil.
func filterCandidates(candidates []domain.Book, limit int, keep func(domain.Book) bool) []domain.Book {
	seen := make(map[string]struct{}, len(candidates))
	out := make([]domain.Book, 0, min(limit, len(candidates)))
	for _, b := range candidates {
		if len(out) == limit {
			break
		}
		bookID := normalize.BookID(string(b.ID))
		if bookID == "" {
			continue
		}
		if _, dup := seen[bookID]; dup {
			continue
		}
		seen[bookID] = struct{}{}
		if keep(b) {
			out = append(out, b)
		}
	}
	return out
}

func reviewStats(p *tasteProfile) ReviewStats {
	ratings := make([]int, len(p.reviews))
	for i, r := range p.reviews {
		ratings[i] = r.Rating
	}
	return ReviewStats{
		AverageRating:    Summarize(ratings).Average,
		TotalReviews:     len(p.reviews),
		HighRatedReviews: len(p.highRated),
	}
}

func nonEmpty(groups []CategoryBooks) []CategoryBooks {
	out := make([]CategoryBooks, 0, len(groups))
	for _, g := range groups {
		if len(g.Books) > 0 {
			out = append(out, g)
		}
	}
	return out
}

func categoryItems(groups []CategoryBooks) []CategoryItem {
	out := make([]CategoryItem, len(groups))
	for i, g := range groups {
		out[i] = CategoryItem{Category: g.Category}
	}
	return out
}

func first(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}
