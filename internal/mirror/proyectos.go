package mirror

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dcornejo/ayudasync/internal/common"
)

// PutProyecto upserts a project record by server id, stamping saved_at and
// the offline marker. The category key is normalized once here, at
// ingestion, so queries never branch on the raw server field shape.
func (s *Store) PutProyecto(ctx context.Context, p *Proyecto) error {
	if p.ID == "" {
		return fmt.Errorf("proyecto without id")
	}

	if p.CategoryKey == "" {
		if cat, ok := ResolveCategory("", p.Tipo, p.Nombre); ok {
			p.CategoryKey = string(cat)
		}
	}
	p.SavedAt = s.now()
	p.IsOffline = true

	query := `INSERT INTO proyectos (id, nombre, tipo, category_key, region_id, comunidad_id, data, saved_at, is_offline, modified_offline)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET nombre = excluded.nombre,
				tipo = excluded.tipo,
				category_key = excluded.category_key,
				region_id = excluded.region_id,
				comunidad_id = excluded.comunidad_id,
				data = excluded.data,
				saved_at = excluded.saved_at,
				is_offline = excluded.is_offline,
				modified_offline = excluded.modified_offline
	`
	_, err := s.db.ExecContext(ctx, query,
		p.ID, p.Nombre, p.Tipo, p.CategoryKey, p.RegionID, p.ComunidadID,
		[]byte(p.Data), p.SavedAt.UTC().Format(timeLayout), p.IsOffline, p.ModifiedOffline)
	if err != nil {
		return fmt.Errorf("failed to upsert proyecto: %w", err)
	}
	return nil
}

// GetProyecto returns one record by server id.
func (s *Store) GetProyecto(ctx context.Context, id string) (*Proyecto, error) {
	row := s.db.QueryRowContext(ctx, selectProyectos+` WHERE id = ?`, id)

	p, err := scanProyecto(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("proyecto %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get proyecto: %w", err)
	}
	return p, nil
}

// GetAllProyectos lists mirrored projects. An empty category returns every
// record; otherwise the reconciliation policy decides membership: records
// carrying a clean key match on the index, legacy records fall back to
// label matching and name inference, and records whose type is an
// unresolvable UUID are excluded (logged at debug).
func (s *Store) GetAllProyectos(ctx context.Context, category string) ([]Proyecto, error) {
	rows, err := s.db.QueryContext(ctx, selectProyectos)
	if err != nil {
		return nil, fmt.Errorf("failed to select proyectos: %w", err)
	}
	defer rows.Close()

	var result []Proyecto
	for rows.Next() {
		p, err := scanProyecto(rows)
		if err != nil {
			return nil, err
		}
		if category == "" || s.matchesCategory(ctx, p, Category(category)) {
			result = append(result, *p)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// DeleteProyecto removes one record. Mirror records are otherwise never
// deleted automatically; see Store.Clear.
func (s *Store) DeleteProyecto(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM proyectos WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete proyecto: %w", err)
	}
	return nil
}

func (s *Store) CountProyectos(ctx context.Context) (int, error) {
	return s.count(ctx, "proyectos")
}

// MarkProyectoModifiedOffline flags a record as locally edited and not yet
// confirmed synced.
func (s *Store) MarkProyectoModifiedOffline(ctx context.Context, id string, modified bool) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE proyectos SET modified_offline = ? WHERE id = ?`, modified, id)
	if err != nil {
		return fmt.Errorf("failed to mark proyecto: %w", err)
	}
	if ra, err := res.RowsAffected(); err == nil && ra == 0 {
		return fmt.Errorf("proyecto %s: %w", id, common.ErrNotFound)
	}
	return nil
}

// matchesCategory applies the reconciliation policy against a wanted
// category for records whose stored key is absent or the sentinel.
func (s *Store) matchesCategory(ctx context.Context, p *Proyecto, want Category) bool {
	if p.CategoryKey != "" && p.CategoryKey != string(CategoryNone) {
		return p.CategoryKey == string(want)
	}

	if p.Tipo != "" && isTypeID(p.Tipo) {
		s.log.Debug(ctx, "proyecto excluded from category query: unresolvable type id",
			"id", p.ID, "tipo", p.Tipo)
		return false
	}

	cat, ok := ResolveCategory(p.CategoryKey, p.Tipo, p.Nombre)
	return ok && cat == want
}

const selectProyectos = `SELECT id, nombre, tipo, category_key, region_id, comunidad_id, data, saved_at, is_offline, modified_offline FROM proyectos`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProyecto(row rowScanner) (*Proyecto, error) {
	p := &Proyecto{}
	var savedAt string
	var data []byte
	if err := row.Scan(&p.ID, &p.Nombre, &p.Tipo, &p.CategoryKey, &p.RegionID, &p.ComunidadID,
		&data, &savedAt, &p.IsOffline, &p.ModifiedOffline); err != nil {
		return nil, err
	}
	p.Data = data
	p.SavedAt = parseTime(savedAt)
	return p, nil
}
