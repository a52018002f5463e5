package auth

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/joao-fontenele/shopflow/internal/domain"
)

func TestUserRepository_GetUser(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer func() { _ = db.Close() }()

	repo := NewUserRepository(db)

	mock.ExpectQuery(`SELECT id, email, role, is_active, is_verified FROM users WHERE id = \$1`).
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "role", "is_active", "is_verified"}).
			AddRow(5, "admin@example.com", "admin", true, true))

	user, err := repo.GetUser(context.Background(), 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user.Email != "admin@example.com" || user.Role != domain.RoleAdmin || !user.Active {
		t.Errorf("unexpected user: %+v", user)
	}

	mock.ExpectQuery(`SELECT id, email, role, is_active, is_verified FROM users`).
		WithArgs(int64(6)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "role", "is_active", "is_verified"}))

	missing, err := repo.GetUser(context.Background(), 6)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if missing != nil {
		t.Errorf("expected nil user, got %+v", missing)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
