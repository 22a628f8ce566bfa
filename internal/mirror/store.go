package mirror

import (
	"context"
	"fmt"
	"time"

	"github.com/dcornejo/ayudasync/internal/dbx"
	"github.com/dcornejo/ayudasync/internal/logging"
)

// Store is the entry point to every mirrored collection. It is bound to a
// DBTX so callers can run multi-entity writes inside one transaction via
// dbx.WithTx.
type Store struct {
	db  dbx.DBTX
	log logging.Logger
	now func() time.Time
}

func New(db dbx.DBTX, log logging.Logger) *Store {
	return &Store{db: db, log: log, now: time.Now}
}

// WithTx returns a Store bound to the transactional handle.
func (s *Store) WithTx(tx dbx.DBTX) *Store {
	return &Store{db: tx, log: s.log, now: s.now}
}

// Clear wipes every mirrored collection. This is the only path that
// deletes records in bulk; normal operation upserts only.
func (s *Store) Clear(ctx context.Context) error {
	for _, table := range []string{
		"proyectos", "comunidades", "regiones", "beneficiarios",
		"tipos_actividad", "personal", "colaboradores",
	} {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM `+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}
	return nil
}

// timeLayout is how saved_at is stored; RFC 3339 keeps SQLite comparisons
// lexicographic.
const timeLayout = "2006-01-02T15:04:05.999999999Z07:00"

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func (s *Store) count(ctx context.Context, table string) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM `+table).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", table, err)
	}
	return n, nil
}
