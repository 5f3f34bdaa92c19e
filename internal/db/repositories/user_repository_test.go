package repositories

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/scholaris/scholaris/internal/db/models"
)

var userCols = []string{"id", "username", "full_name", "role", "password_hash", "active", "created_at", "updated_at"}

func newUserRepo(t *testing.T) (*UserRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewUserRepository(db), mock
}

func sampleUserRow() *sqlmock.Rows {
	return sqlmock.NewRows(userCols).
		AddRow(1, "msantos", "Maria Santos", "ICT_Coordinator", "hash", true, time.Now(), time.Now())
}

func TestGetByID_Found(t *testing.T) {
	repo, mock := newUserRepo(t)
	mock.ExpectQuery("SELECT .* FROM users WHERE id").
		WithArgs(int64(1)).
		WillReturnRows(sampleUserRow())

	u, err := repo.GetByID(context.Background(), 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u == nil || u.Username != "msantos" || u.Role != "ICT_Coordinator" {
		t.Errorf("unexpected user: %+v", u)
	}
}

func TestGetByID_NotFound(t *testing.T) {
	repo, mock := newUserRepo(t)
	mock.ExpectQuery("SELECT .* FROM users WHERE id").
		WillReturnRows(sqlmock.NewRows(userCols))

	u, err := repo.GetByID(context.Background(), 404)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u != nil {
		t.Errorf("user = %+v, want nil", u)
	}
}

func TestGetByUsername_NotFound(t *testing.T) {
	repo, mock := newUserRepo(t)
	mock.ExpectQuery("SELECT .* FROM users WHERE username").
		WillReturnRows(sqlmock.NewRows(userCols))

	u, err := repo.GetByUsername(context.Background(), "ghost")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u != nil {
		t.Errorf("user = %+v, want nil", u)
	}
}

func TestCreate_AssignsID(t *testing.T) {
	repo, mock := newUserRepo(t)
	mock.ExpectQuery("INSERT INTO users").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(5))

	u := &models.User{Username: "admin", FullName: "Administrator", Role: "Admin", PasswordHash: "hash", Active: true}
	id, err := repo.Create(context.Background(), u)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != 5 || u.ID != 5 {
		t.Errorf("id = %d, want 5", id)
	}
}

func TestCount(t *testing.T) {
	repo, mock := newUserRepo(t)
	mock.ExpectQuery("SELECT COUNT.* FROM users").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	n, err := repo.Count(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 3 {
		t.Errorf("count = %d, want 3", n)
	}
}
