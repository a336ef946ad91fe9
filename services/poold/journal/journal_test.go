package journal

import (
	"context"
	"fmt"
	"math/big"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"lendingpool/core/types"
	"lendingpool/crypto"
	"lendingpool/native/pool"
	"lendingpool/services/poold/config"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, AutoMigrate(db))
	return db
}

func TestJournalAppendsAndLists(t *testing.T) {
	db := setupTestDB(t)
	j, err := New(db, "main", nil)
	require.NoError(t, err)

	lender := crypto.AddressFromLabel("test/lender")
	j.Emit(pool.WrapEvent(pool.DepositedEvent(lender, bigInt(100), bigInt(100))))
	j.Emit(pool.WrapEvent(pool.WithdrawnEvent(lender, bigInt(40), bigInt(40), bigInt(0))))
	j.Emit(nil)
	j.Emit(rawEvent{})

	entries, err := j.List(context.Background(), Filter{})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, uint64(1), entries[0].Sequence)
	require.Equal(t, pool.EventTypeDeposited, entries[0].Type)
	attrs, err := entries[0].Decoded()
	require.NoError(t, err)
	require.Equal(t, "100", attrs["amount"])
	require.Equal(t, lender.String(), attrs["account"])

	withdrawn, err := j.List(context.Background(), Filter{Type: pool.EventTypeWithdrawn})
	require.NoError(t, err)
	require.Len(t, withdrawn, 1)

	after, err := j.List(context.Background(), Filter{After: 1, Limit: 10})
	require.NoError(t, err)
	require.Len(t, after, 1)
	require.Equal(t, uint64(2), after[0].Sequence)
}

func TestJournalResumesSequence(t *testing.T) {
	db := setupTestDB(t)
	first, err := New(db, "main", nil)
	require.NoError(t, err)
	first.Emit(pool.WrapEvent(&types.Event{Type: pool.EventTypeStatusChanged, Attributes: map[string]string{"status": "paused"}}))
	first.Emit(pool.WrapEvent(&types.Event{Type: pool.EventTypeStatusChanged, Attributes: map[string]string{"status": "unpaused"}}))

	other, err := New(db, "other", nil)
	require.NoError(t, err)
	other.Emit(pool.WrapEvent(&types.Event{Type: pool.EventTypeStatusChanged}))

	resumed, err := New(db, "main", nil)
	require.NoError(t, err)
	resumed.Emit(pool.WrapEvent(&types.Event{Type: pool.EventTypeStatusChanged, Attributes: map[string]string{"status": "closed"}}))

	entries, err := resumed.List(context.Background(), Filter{})
	require.NoError(t, err)
	require.Len(t, entries, 3)
	require.Equal(t, uint64(3), entries[2].Sequence)

	otherEntries, err := other.List(context.Background(), Filter{})
	require.NoError(t, err)
	require.Len(t, otherEntries, 1)
	require.Equal(t, uint64(1), otherEntries[0].Sequence)
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(config.JournalConfig{Driver: "mysql", DSN: "x"})
	require.Error(t, err)

	db, err := Open(config.JournalConfig{Driver: config.JournalSQLite, DSN: fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())})
	require.NoError(t, err)
	require.True(t, db.Migrator().HasTable(&Entry{}))
}

type rawEvent struct{}

func (rawEvent) EventType() string { return "raw" }

func bigInt(v int64) *big.Int { return big.NewInt(v) }
