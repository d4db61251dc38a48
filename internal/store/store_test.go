package store_test

import (
	"context"
	"database/sql/driver"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"assinatura-bot/internal/dates"
	"assinatura-bot/internal/models"
	"assinatura-bot/internal/store"
)

var recordColumns = []string{
	"subject_id", "display_name", "expires_at", "plan_label", "activated_at", "status", "last_notified_at",
}

func newMockStore(t *testing.T) (*store.Store, sqlmock.Sqlmock) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	gdb, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{})
	require.NoError(t, err)

	return store.New(gdb, zap.NewNop()), mock
}

// datePrefixArg matches a canonical timestamp argument by its date part.
type datePrefixArg struct {
	prefix string
}

func (a datePrefixArg) Match(v driver.Value) bool {
	s, ok := v.(string)
	return ok && strings.HasPrefix(s, a.prefix)
}

func TestGetHit(t *testing.T) {
	st, mock := newMockStore(t)

	rows := sqlmock.NewRows(recordColumns).
		AddRow(int64(42), "Fulano", "2025-12-31 23:59:59", "Plano 30 dias", "2025-12-01 10:00:00", "ACTIVE", nil)
	mock.ExpectQuery(`SELECT \* FROM "subscription_records" WHERE subject_id = \$1`).
		WithArgs(int64(42), 1).
		WillReturnRows(rows)

	rec, err := st.Get(context.Background(), 42)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "Fulano", rec.DisplayName)
	assert.Equal(t, models.StatusActive, rec.Status)
	assert.Nil(t, rec.LastNotifiedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetMiss(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT \* FROM "subscription_records" WHERE subject_id = \$1`).
		WithArgs(int64(7), 1).
		WillReturnRows(sqlmock.NewRows(recordColumns))

	rec, err := st.Get(context.Background(), 7)
	require.NoError(t, err)
	assert.Nil(t, rec, "missing subject is not an error")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListAllOrdersByExpiry(t *testing.T) {
	st, mock := newMockStore(t)

	rows := sqlmock.NewRows(recordColumns).
		AddRow(int64(1), "Primeiro", "2025-01-10 00:00:00", "Plano 30 dias", "2024-12-10 00:00:00", "ACTIVE", nil).
		AddRow(int64(2), "Segundo", "2025-02-10 00:00:00", "Plano 90 dias", "2024-11-10 00:00:00", "ACTIVE", nil)
	mock.ExpectQuery(`SELECT \* FROM "subscription_records" ORDER BY expires_at asc`).
		WillReturnRows(rows)

	recs, err := st.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, int64(1), recs[0].SubjectID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertResetsNotificationCycle(t *testing.T) {
	st, mock := newMockStore(t)

	expiry := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO "subscription_records"`).
		WithArgs(int64(42), "Fulano", dates.FormatForStorage(expiry), "Plano 30 dias",
			sqlmock.AnyArg(), models.StatusActive, nil).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := st.Upsert(context.Background(), 42, "Fulano", expiry, "Plano 30 dias")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetStatusAppendsHistory(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "subscription_records" SET`).
		WithArgs(models.StatusExpired, int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`INSERT INTO "history_entries"`).
		WithArgs(int64(7), "STATUS_EXPIRED", "sem renovação", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectCommit()

	err := st.SetStatus(context.Background(), 7, models.StatusExpired, "sem renovação")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetStatusMissingSubject(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "subscription_records" SET`).
		WithArgs(models.StatusExpired, int64(404)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := st.SetStatus(context.Background(), 404, models.StatusExpired, "teste")
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrStore)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkNotified(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "subscription_records" SET`).
		WithArgs(sqlmock.AnyArg(), int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`INSERT INTO "history_entries"`).
		WithArgs(int64(7), "AVISO", "Tipo: REMINDER_MID", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectCommit()

	err := st.MarkNotified(context.Background(), 7, "REMINDER_MID")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkNotifiedMissingSubject(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "subscription_records" SET`).
		WithArgs(sqlmock.AnyArg(), int64(404)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := st.MarkNotified(context.Background(), 404, "DUE_TODAY")
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrStore)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSummarizePendingWindow(t *testing.T) {
	st, mock := newMockStore(t)

	now := time.Now()
	in1 := dates.FormatForStorage(now.AddDate(0, 0, 1))
	in5 := dates.FormatForStorage(now.AddDate(0, 0, 5))
	in10 := dates.FormatForStorage(now.AddDate(0, 0, 10))

	mock.ExpectQuery(`SELECT \* FROM "subscription_records" WHERE status = \$1 ORDER BY expires_at asc`).
		WithArgs(models.StatusActive).
		WillReturnRows(sqlmock.NewRows(recordColumns).
			AddRow(int64(1), "Amanhã", in1, "Plano 30 dias", in1, "ACTIVE", nil).
			AddRow(int64(2), "Em cinco", in5, "Plano 30 dias", in5, "ACTIVE", nil).
			AddRow(int64(3), "Em dez", in10, "Plano 90 dias", in10, "ACTIVE", nil))

	mock.ExpectQuery(`SELECT \* FROM "subscription_records" WHERE status = \$1 ORDER BY expires_at asc`).
		WithArgs(models.StatusExpired).
		WillReturnRows(sqlmock.NewRows(recordColumns))

	// the look-ahead limit is five days from now; the 10-day record stays out
	limitPrefix := now.AddDate(0, 0, store.PendingWindowDays).Format("2006-01-02")
	mock.ExpectQuery(`SELECT \* FROM "subscription_records" WHERE status = \$1 AND expires_at <= \$2 ORDER BY expires_at asc`).
		WithArgs(models.StatusActive, datePrefixArg{prefix: limitPrefix}).
		WillReturnRows(sqlmock.NewRows(recordColumns).
			AddRow(int64(1), "Amanhã", in1, "Plano 30 dias", in1, "ACTIVE", nil).
			AddRow(int64(2), "Em cinco", in5, "Plano 30 dias", in5, "ACTIVE", nil))

	summary, err := st.Summarize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, summary.ActiveCount)
	assert.Equal(t, 0, summary.ExpiredCount)
	assert.Equal(t, 2, summary.PendingCount)
	require.Len(t, summary.Pending, 2)
	assert.Equal(t, "Amanhã", summary.Pending[0].DisplayName)
	assert.Equal(t, "Em cinco", summary.Pending[1].DisplayName)
	assert.NoError(t, mock.ExpectationsWereMet())
}
