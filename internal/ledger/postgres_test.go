package ledger

import (
	"context"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPGStoreLoad(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	first := time.Date(2023, 10, 23, 22, 22, 38, 0, time.UTC)
	second := time.Date(2023, 10, 24, 8, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT address, awaiting_since FROM correspondence_entries").
		WillReturnRows(pgxmock.NewRows([]string{"address", "awaiting_since"}).
			AddRow("a@example.com", first).
			AddRow("b@example.com", second))

	store := NewPGStore(mock, time.UTC)
	entries, err := store.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "a@example.com", entries[0].Address)
	assert.True(t, first.Equal(entries[0].AwaitingSince))
	assert.Equal(t, "b@example.com", entries[1].Address)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPGStoreAppend(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	at := time.Date(2023, 10, 23, 22, 22, 38, 0, time.UTC)
	mock.ExpectExec("INSERT INTO correspondence_entries").
		WithArgs("a@example.com", at).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	store := NewPGStore(mock, time.UTC)
	err = store.Append(context.Background(), []Entry{{Address: "a@example.com", AwaitingSince: at}})
	require.NoError(t, err)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPGStoreRemove(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("DELETE FROM correspondence_entries").
		WithArgs("a@example.com").
		WillReturnResult(pgxmock.NewResult("DELETE", 2))

	store := NewPGStore(mock, time.UTC)
	require.NoError(t, store.Remove(context.Background(), "a@example.com"))

	assert.NoError(t, mock.ExpectationsWereMet())
}
