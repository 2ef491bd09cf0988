package sink

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elanleads/go-scrape-leads/models"
)

func testLead(phone string) *models.Lead {
	return &models.Lead{
		Name:      "Elvin",
		Phone:     phone,
		Website:   "tezbazar.az",
		Link:      "https://tezbazar.az/menzil-satilir-123456.html",
		ScrapedAt: time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC),
		RawData:   `{"title":"3 otaqlı mənzil"}`,
	}
}

func TestPostgresUpsertInserted(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	lead := testLead("504787463")
	mock.ExpectExec("INSERT INTO leads").
		WithArgs(lead.Name, lead.Phone, lead.Website, lead.Link, lead.ScrapedAt, lead.RawData).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	p := &Postgres{pool: mock}
	outcome, err := p.Upsert(context.Background(), lead)
	require.NoError(t, err)
	assert.Equal(t, Inserted, outcome)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpsertDuplicate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	lead := testLead("504787463")
	mock.ExpectExec("INSERT INTO leads").
		WithArgs(lead.Name, lead.Phone, lead.Website, lead.Link, lead.ScrapedAt, lead.RawData).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	p := &Postgres{pool: mock}
	outcome, err := p.Upsert(context.Background(), lead)
	require.NoError(t, err)
	assert.Equal(t, DuplicateSkipped, outcome, "conflict must be classified, not treated as failure")
}

func TestPostgresUpsertError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	lead := testLead("504787463")
	mock.ExpectExec("INSERT INTO leads").
		WithArgs(lead.Name, lead.Phone, lead.Website, lead.Link, lead.ScrapedAt, lead.RawData).
		WillReturnError(errors.New("connection refused"))

	p := &Postgres{pool: mock}
	outcome, err := p.Upsert(context.Background(), lead)
	require.Error(t, err)
	assert.Equal(t, PersistError, outcome)
}

// fakeSink records upserts and returns scripted outcomes.
type fakeSink struct {
	calls    int
	outcome  Outcome
	err      error
	lastLead *models.Lead
}

func (f *fakeSink) Upsert(ctx context.Context, lead *models.Lead) (Outcome, error) {
	f.calls++
	f.lastLead = lead
	return f.outcome, f.err
}

func (f *fakeSink) Close() {}

func TestDeduperShortCircuitsRepeatPhones(t *testing.T) {
	inner := &fakeSink{outcome: Inserted}
	d, err := NewDeduper(inner, 128)
	require.NoError(t, err)

	outcome, err := d.Upsert(context.Background(), testLead("504787463"))
	require.NoError(t, err)
	assert.Equal(t, Inserted, outcome)

	outcome, err = d.Upsert(context.Background(), testLead("504787463"))
	require.NoError(t, err)
	assert.Equal(t, DuplicateSkipped, outcome)
	assert.Equal(t, 1, inner.calls, "second upsert must not reach the store")

	outcome, err = d.Upsert(context.Background(), testLead("554787463"))
	require.NoError(t, err)
	assert.Equal(t, Inserted, outcome)
	assert.Equal(t, 2, inner.calls)
}

func TestDeduperDoesNotRememberFailedUpserts(t *testing.T) {
	inner := &fakeSink{outcome: PersistError, err: errors.New("disk full")}
	d, err := NewDeduper(inner, 128)
	require.NoError(t, err)

	_, err = d.Upsert(context.Background(), testLead("504787463"))
	require.Error(t, err)

	// The phone was never stored, so a retry within the run must pass
	// through to the sink again.
	inner.outcome, inner.err = Inserted, nil
	outcome, err := d.Upsert(context.Background(), testLead("504787463"))
	require.NoError(t, err)
	assert.Equal(t, Inserted, outcome)
	assert.Equal(t, 2, inner.calls)
}
