package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/scholaris/scholaris/internal/auth"
	"github.com/scholaris/scholaris/internal/db/models"
	"github.com/scholaris/scholaris/internal/db/repositories"
)

const (
	// DefaultListLimit is the page size applied when a list request carries no
	// limit, or a non-positive one.
	DefaultListLimit = 100
	// DefaultRecentLimit is the default size of the recent-activity feed.
	DefaultRecentLimit = 20
	// ActorListCap bounds the per-actor listing, which is not paginated.
	ActorListCap = 100
	// CategoryListCap bounds the per-category listing, which is not paginated.
	CategoryListCap = 100

	// statsCacheTTL bounds staleness of the cached stats report. Stats power a
	// dashboard; thirty seconds of lag is invisible there and saves two
	// aggregate scans per page load.
	statsCacheTTL = 30 * time.Second
)

// StatsCache caches assembled stats reports keyed by role scope. Implemented
// by the Redis cache; a nil cache disables caching entirely.
type StatsCache interface {
	// GetStats returns the cached report for key, or nil on a miss.
	GetStats(ctx context.Context, key string) (*StatsReport, error)
	// SetStats stores the report under key for at most ttl.
	SetStats(ctx context.Context, key string, report *StatsReport, ttl time.Duration) error
}

// ListParams are the caller-supplied filters for a trail listing. Zero values
// mean "not filtered". Dates are calendar days in YYYY-MM-DD form; DateTo is
// inclusive of the whole named day.
type ListParams struct {
	Category string
	Action   string
	ActorID  int64
	DateFrom string
	DateTo   string
	Limit    int
	Offset   int
}

// ListResult is one page of the trail plus the total matching count, so
// clients can render page controls.
type ListResult struct {
	Entries []*models.AuditEntryView `json:"entries"`
	Total   int                      `json:"total"`
	Limit   int                      `json:"limit"`
	Offset  int                      `json:"offset"`
}

// StatsReport is the full aggregated view served to dashboards: overall
// counters plus the per-category activity breakdown, both computed within the
// caller's scope.
type StatsReport struct {
	Overall    *models.AuditStats        `json:"overall"`
	ByCategory []models.CategoryActivity `json:"by_category"`
}

// QueryService is the read side of the audit trail. Every method resolves the
// calling actor's role to a category scope first; entries outside the scope are
// invisible, not forbidden — except ByCategory, where the caller names the
// category explicitly and gets a denial instead of an empty lie.
type QueryService struct {
	repo    *repositories.AuditRepository
	reports *repositories.ReportRepository
	cache   StatsCache
}

// NewQueryService creates a QueryService. cache may be nil.
func NewQueryService(repo *repositories.AuditRepository, reports *repositories.ReportRepository, cache StatsCache) *QueryService {
	return &QueryService{repo: repo, reports: reports, cache: cache}
}

// List returns one scoped, filtered page of the trail, newest first. A
// category filter outside the caller's scope yields an empty page rather than
// an error: the filter and the scope intersect to nothing.
func (s *QueryService) List(ctx context.Context, actor auth.Actor, p ListParams) (*ListResult, error) {
	filters, err := s.buildFilters(actor, p)
	if err != nil {
		return nil, err
	}

	limit := p.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	offset := p.Offset
	if offset < 0 {
		offset = 0
	}

	entries, total, err := s.repo.List(ctx, filters, limit, offset)
	if err != nil {
		return nil, &StorageError{Op: "list audit entries", Err: err}
	}
	return &ListResult{Entries: entries, Total: total, Limit: limit, Offset: offset}, nil
}

// Recent returns the newest entries within the caller's scope, for the
// dashboard activity feed.
func (s *QueryService) Recent(ctx context.Context, actor auth.Actor, limit int) ([]*models.AuditEntryView, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	scope := auth.ScopeForRole(actor.Role)

	entries, _, err := s.repo.List(ctx, repositories.AuditFilters{AllowedCategories: scope.Allowlist()}, limit, 0)
	if err != nil {
		return nil, &StorageError{Op: "list recent audit entries", Err: err}
	}
	return entries, nil
}

// ByCategory returns up to CategoryListCap newest entries for one named
// category. Unlike List, naming a category outside the caller's scope is an
// access denial: the caller asked for that category specifically.
func (s *QueryService) ByCategory(ctx context.Context, actor auth.Actor, category string) ([]*models.AuditEntryView, error) {
	if category == "" {
		return nil, &ValidationError{Field: "category"}
	}
	if !auth.ScopeForRole(actor.Role).Allows(category) {
		return nil, ErrAccessDenied
	}

	entries, _, err := s.repo.List(ctx, repositories.AuditFilters{Category: &category}, CategoryListCap, 0)
	if err != nil {
		return nil, &StorageError{Op: "list audit entries by category", Err: err}
	}
	return entries, nil
}

// ByActor returns up to ActorListCap newest entries recorded by one actor,
// visible within the caller's scope.
func (s *QueryService) ByActor(ctx context.Context, actor auth.Actor, actorID int64) ([]*models.AuditEntryView, error) {
	if actorID <= 0 {
		return nil, &ValidationError{Field: "actorId"}
	}
	scope := auth.ScopeForRole(actor.Role)

	filters := repositories.AuditFilters{
		ActorID:           &actorID,
		AllowedCategories: scope.Allowlist(),
	}
	entries, _, err := s.repo.List(ctx, filters, ActorListCap, 0)
	if err != nil {
		return nil, &StorageError{Op: "list audit entries by actor", Err: err}
	}
	return entries, nil
}

// Stats assembles the aggregated report for the caller's scope, serving from
// cache when one is configured. Cache failures degrade to a direct query.
func (s *QueryService) Stats(ctx context.Context, actor auth.Actor) (*StatsReport, error) {
	key := "audit:stats:" + string(actor.Role)
	if s.cache != nil {
		cached, err := s.cache.GetStats(ctx, key)
		if err != nil {
			slog.Warn("stats cache read failed", "key", key, "error", err)
		} else if cached != nil {
			return cached, nil
		}
	}

	allowed := auth.ScopeForRole(actor.Role).Allowlist()

	overall, err := s.reports.Overview(ctx, allowed)
	if err != nil {
		return nil, &StorageError{Op: "aggregate audit stats", Err: err}
	}
	byCategory, err := s.reports.ActivityByCategory(ctx, allowed)
	if err != nil {
		return nil, &StorageError{Op: "aggregate audit activity by category", Err: err}
	}

	report := &StatsReport{Overall: overall, ByCategory: byCategory}
	if s.cache != nil {
		if err := s.cache.SetStats(ctx, key, report, statsCacheTTL); err != nil {
			slog.Warn("stats cache write failed", "key", key, "error", err)
		}
	}
	return report, nil
}

// Get returns one entry by id. Entries outside the caller's scope are denied,
// not hidden: the id was already known to the caller.
func (s *QueryService) Get(ctx context.Context, actor auth.Actor, id int64) (*models.AuditEntryView, error) {
	entry, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, &StorageError{Op: "get audit entry", Err: err}
	}
	if entry == nil {
		return nil, ErrNotFound
	}
	if !auth.ScopeForRole(actor.Role).Allows(entry.Category) {
		return nil, ErrAccessDenied
	}
	return entry, nil
}

// buildFilters translates caller parameters into repository filters, composing
// the explicit category filter with the actor's role scope.
func (s *QueryService) buildFilters(actor auth.Actor, p ListParams) (repositories.AuditFilters, error) {
	var filters repositories.AuditFilters
	scope := auth.ScopeForRole(actor.Role)

	if p.Category != "" {
		if scope.Allows(p.Category) {
			category := p.Category
			filters.Category = &category
		} else {
			// The requested category and the role scope intersect to nothing.
			filters.AllowedCategories = []string{}
		}
	} else {
		filters.AllowedCategories = scope.Allowlist()
	}

	if p.Action != "" {
		action := p.Action
		filters.Action = &action
	}
	if p.ActorID > 0 {
		actorID := p.ActorID
		filters.ActorID = &actorID
	}

	if p.DateFrom != "" {
		from, err := parseDay(p.DateFrom)
		if err != nil {
			return filters, &ValidationError{Field: "dateFrom", Reason: "invalid date, expected YYYY-MM-DD"}
		}
		filters.From = &from
	}
	if p.DateTo != "" {
		to, err := parseDay(p.DateTo)
		if err != nil {
			return filters, &ValidationError{Field: "dateTo", Reason: "invalid date, expected YYYY-MM-DD"}
		}
		// Inclusive of the whole named day: the repository bound is exclusive.
		until := to.AddDate(0, 0, 1)
		filters.Until = &until
	}
	return filters, nil
}

func parseDay(s string) (time.Time, error) {
	return time.ParseInLocation("2006-01-02", s, time.UTC)
}
