package repositories

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
)

var overviewCols = []string{"total", "distinct_categories", "distinct_actors", "today", "week", "month"}

func newReportRepo(t *testing.T) (*ReportRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewReportRepository(sqlx.NewDb(db, "sqlmock")), mock
}

func TestOverview_Unrestricted(t *testing.T) {
	repo, mock := newReportRepo(t)
	mock.ExpectQuery("SELECT(.|\n)*COUNT\\(DISTINCT category\\)(.|\n)*FROM audit_trail").
		WillReturnRows(sqlmock.NewRows(overviewCols).AddRow(120, 5, 7, 3, 40, 110))
	mock.ExpectQuery("SELECT action, COUNT.*GROUP BY action").
		WillReturnRows(sqlmock.NewRows([]string{"action", "count"}).
			AddRow("INSERT", 70).
			AddRow("UPDATE", 50))

	stats, err := repo.Overview(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.TotalCount != 120 || stats.DistinctCategories != 5 || stats.DistinctActors != 7 {
		t.Errorf("unexpected overall counts: %+v", stats)
	}
	if stats.CountsByPeriod.Today != 3 || stats.CountsByPeriod.Week != 40 || stats.CountsByPeriod.Month != 110 {
		t.Errorf("unexpected period counts: %+v", stats.CountsByPeriod)
	}
	if stats.CountsByAction["INSERT"] != 70 || stats.CountsByAction["UPDATE"] != 50 {
		t.Errorf("unexpected action counts: %+v", stats.CountsByAction)
	}
}

func TestOverview_EmptyStoreIsZeroedNotError(t *testing.T) {
	repo, mock := newReportRepo(t)
	mock.ExpectQuery("SELECT(.|\n)*FROM audit_trail").
		WillReturnRows(sqlmock.NewRows(overviewCols).AddRow(0, 0, 0, 0, 0, 0))
	mock.ExpectQuery("SELECT action, COUNT.*GROUP BY action").
		WillReturnRows(sqlmock.NewRows([]string{"action", "count"}))

	stats, err := repo.Overview(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.TotalCount != 0 || stats.DistinctCategories != 0 || stats.DistinctActors != 0 {
		t.Errorf("expected zeroed stats, got %+v", stats)
	}
	if stats.CountsByAction == nil || len(stats.CountsByAction) != 0 {
		t.Errorf("CountsByAction should be an empty map, got %v", stats.CountsByAction)
	}
}

func TestOverview_ScopedPassesAllowlist(t *testing.T) {
	repo, mock := newReportRepo(t)
	mock.ExpectQuery("SELECT(.|\n)*FROM audit_trail WHERE category = ANY").
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(overviewCols).AddRow(10, 2, 1, 0, 4, 10))
	mock.ExpectQuery("SELECT action, COUNT.*WHERE category = ANY.*GROUP BY action").
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"action", "count"}).AddRow("INSERT", 10))

	stats, err := repo.Overview(context.Background(), []string{"student", "enrollment"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.TotalCount != 10 {
		t.Errorf("TotalCount = %d, want 10", stats.TotalCount)
	}
}

func TestActivityByCategory_OrderedByCount(t *testing.T) {
	repo, mock := newReportRepo(t)
	now := time.Now()
	mock.ExpectQuery("SELECT category, COUNT(.|\n)*GROUP BY category(.|\n)*ORDER BY count DESC").
		WillReturnRows(sqlmock.NewRows([]string{"category", "count", "last_activity_at"}).
			AddRow("enrollment", 80, now).
			AddRow("student", 30, now.Add(-time.Hour)))

	activity, err := repo.ActivityByCategory(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(activity) != 2 {
		t.Fatalf("len = %d, want 2", len(activity))
	}
	if activity[0].Category != "enrollment" || activity[0].Count != 80 {
		t.Errorf("unexpected first row: %+v", activity[0])
	}
}

func TestActivityByCategory_EmptyStore(t *testing.T) {
	repo, mock := newReportRepo(t)
	mock.ExpectQuery("SELECT category, COUNT").
		WillReturnRows(sqlmock.NewRows([]string{"category", "count", "last_activity_at"}))

	activity, err := repo.ActivityByCategory(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if activity == nil || len(activity) != 0 {
		t.Errorf("activity should be an empty slice, got %v", activity)
	}
}
