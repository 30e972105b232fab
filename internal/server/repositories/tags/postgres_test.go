package tags

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

func TestSyncEntryTags_RelinksAll(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`DELETE FROM entry_tags WHERE entry_id = \$1`).
		WithArgs("e1").
		WillReturnResult(sqlmock.NewResult(0, 2))

	upsert := regexp.MustCompile(`INSERT INTO tags .* ON CONFLICT \(user_id, name\) DO UPDATE SET name = EXCLUDED\.name\s+RETURNING id`)
	link := regexp.MustCompile(`INSERT INTO entry_tags .* ON CONFLICT DO NOTHING`)

	mock.ExpectQuery(upsert.String()).WithArgs("u1", "walk").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("t1"))
	mock.ExpectExec(link.String()).WithArgs("e1", "t1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	mock.ExpectQuery(upsert.String()).WithArgs("u1", "coffee").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("t2"))
	mock.ExpectExec(link.String()).WithArgs("e1", "t2").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.SyncEntryTags(context.Background(), "u1", "e1", []string{"walk", "coffee"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSyncEntryTags_EmptyListOnlyUnlinks(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`DELETE FROM entry_tags`).
		WithArgs("e1").
		WillReturnResult(sqlmock.NewResult(0, 3))

	if err := repo.SyncEntryTags(context.Background(), "u1", "e1", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSyncEntryTags_UpsertError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`DELETE FROM entry_tags`).
		WithArgs("e1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`INSERT INTO tags`).
		WithArgs("u1", "walk").
		WillReturnError(errors.New("db err"))

	err := repo.SyncEntryTags(context.Background(), "u1", "e1", []string{"walk"})
	if err == nil || !regexp.MustCompile(`db error: .*db err`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestListByUser(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT id, user_id, name FROM tags WHERE user_id = \$1 ORDER BY name`).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "name"}).
			AddRow("t1", "u1", "coffee").
			AddRow("t2", "u1", "walk"))

	got, err := repo.ListByUser(context.Background(), "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[0].Name != "coffee" || got[1].Name != "walk" {
		t.Fatalf("unexpected result: %+v", got)
	}
}
