package mirror

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dcornejo/ayudasync/internal/common"
)

// Comunidades, regiones and tipos de actividad form the reference catalog
// the project screens filter against while offline.

func (s *Store) PutComunidad(ctx context.Context, c *Comunidad) error {
	if c.ID == "" {
		return fmt.Errorf("comunidad without id")
	}
	c.SavedAt = s.now()
	c.IsOffline = true

	query := `INSERT INTO comunidades (id, nombre, region_id, data, saved_at, is_offline, modified_offline)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET nombre = excluded.nombre,
				region_id = excluded.region_id,
				data = excluded.data,
				saved_at = excluded.saved_at,
				is_offline = excluded.is_offline,
				modified_offline = excluded.modified_offline
	`
	_, err := s.db.ExecContext(ctx, query,
		c.ID, c.Nombre, c.RegionID, []byte(c.Data), c.SavedAt.UTC().Format(timeLayout), c.IsOffline, c.ModifiedOffline)
	if err != nil {
		return fmt.Errorf("failed to upsert comunidad: %w", err)
	}
	return nil
}

func (s *Store) GetComunidad(ctx context.Context, id string) (*Comunidad, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, nombre, region_id, data, saved_at, is_offline, modified_offline FROM comunidades WHERE id = ?`, id)

	c := &Comunidad{}
	var savedAt string
	var data []byte
	err := row.Scan(&c.ID, &c.Nombre, &c.RegionID, &data, &savedAt, &c.IsOffline, &c.ModifiedOffline)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("comunidad %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get comunidad: %w", err)
	}
	c.Data = data
	c.SavedAt = parseTime(savedAt)
	return c, nil
}

// GetAllComunidades lists communities, optionally filtered by region.
func (s *Store) GetAllComunidades(ctx context.Context, regionID string) ([]Comunidad, error) {
	query := `SELECT id, nombre, region_id, data, saved_at, is_offline, modified_offline FROM comunidades`
	args := []any{}
	if regionID != "" {
		query += ` WHERE region_id = ?`
		args = append(args, regionID)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select comunidades: %w", err)
	}
	defer rows.Close()

	var result []Comunidad
	for rows.Next() {
		c := Comunidad{}
		var savedAt string
		var data []byte
		if err := rows.Scan(&c.ID, &c.Nombre, &c.RegionID, &data, &savedAt, &c.IsOffline, &c.ModifiedOffline); err != nil {
			return nil, err
		}
		c.Data = data
		c.SavedAt = parseTime(savedAt)
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) DeleteComunidad(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM comunidades WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete comunidad: %w", err)
	}
	return nil
}

func (s *Store) CountComunidades(ctx context.Context) (int, error) {
	return s.count(ctx, "comunidades")
}

func (s *Store) MarkComunidadModifiedOffline(ctx context.Context, id string, modified bool) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE comunidades SET modified_offline = ? WHERE id = ?`, modified, id)
	if err != nil {
		return fmt.Errorf("failed to mark comunidad: %w", err)
	}
	if ra, err := res.RowsAffected(); err == nil && ra == 0 {
		return fmt.Errorf("comunidad %s: %w", id, common.ErrNotFound)
	}
	return nil
}

func (s *Store) PutRegion(ctx context.Context, r *Region) error {
	if r.ID == "" {
		return fmt.Errorf("region without id")
	}
	r.SavedAt = s.now()
	r.IsOffline = true

	query := `INSERT INTO regiones (id, nombre, data, saved_at, is_offline)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET nombre = excluded.nombre,
				data = excluded.data,
				saved_at = excluded.saved_at,
				is_offline = excluded.is_offline
	`
	_, err := s.db.ExecContext(ctx, query,
		r.ID, r.Nombre, []byte(r.Data), r.SavedAt.UTC().Format(timeLayout), r.IsOffline)
	if err != nil {
		return fmt.Errorf("failed to upsert region: %w", err)
	}
	return nil
}

func (s *Store) GetRegion(ctx context.Context, id string) (*Region, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, nombre, data, saved_at, is_offline FROM regiones WHERE id = ?`, id)

	r := &Region{}
	var savedAt string
	var data []byte
	err := row.Scan(&r.ID, &r.Nombre, &data, &savedAt, &r.IsOffline)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("region %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get region: %w", err)
	}
	r.Data = data
	r.SavedAt = parseTime(savedAt)
	return r, nil
}

func (s *Store) GetAllRegiones(ctx context.Context) ([]Region, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, nombre, data, saved_at, is_offline FROM regiones`)
	if err != nil {
		return nil, fmt.Errorf("failed to select regiones: %w", err)
	}
	defer rows.Close()

	var result []Region
	for rows.Next() {
		r := Region{}
		var savedAt string
		var data []byte
		if err := rows.Scan(&r.ID, &r.Nombre, &data, &savedAt, &r.IsOffline); err != nil {
			return nil, err
		}
		r.Data = data
		r.SavedAt = parseTime(savedAt)
		result = append(result, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) DeleteRegion(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM regiones WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete region: %w", err)
	}
	return nil
}

func (s *Store) CountRegiones(ctx context.Context) (int, error) {
	return s.count(ctx, "regiones")
}

// PutTipoActividad upserts an activity-type catalog entry. The category is
// resolved from the name so a project whose tipo is this entry's id can
// still be classified through the catalog.
func (s *Store) PutTipoActividad(ctx context.Context, t *TipoActividad) error {
	if t.ID == "" {
		return fmt.Errorf("tipo de actividad without id")
	}
	if t.CategoryKey == "" {
		if cat, ok := matchLabel(t.Nombre); ok {
			t.CategoryKey = string(cat)
		}
	}
	t.SavedAt = s.now()
	t.IsOffline = true

	query := `INSERT INTO tipos_actividad (id, nombre, category_key, data, saved_at, is_offline)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET nombre = excluded.nombre,
				category_key = excluded.category_key,
				data = excluded.data,
				saved_at = excluded.saved_at,
				is_offline = excluded.is_offline
	`
	_, err := s.db.ExecContext(ctx, query,
		t.ID, t.Nombre, t.CategoryKey, []byte(t.Data), t.SavedAt.UTC().Format(timeLayout), t.IsOffline)
	if err != nil {
		return fmt.Errorf("failed to upsert tipo de actividad: %w", err)
	}
	return nil
}

func (s *Store) GetTipoActividad(ctx context.Context, id string) (*TipoActividad, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, nombre, category_key, data, saved_at, is_offline FROM tipos_actividad WHERE id = ?`, id)

	t := &TipoActividad{}
	var savedAt string
	var data []byte
	err := row.Scan(&t.ID, &t.Nombre, &t.CategoryKey, &data, &savedAt, &t.IsOffline)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("tipo de actividad %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tipo de actividad: %w", err)
	}
	t.Data = data
	t.SavedAt = parseTime(savedAt)
	return t, nil
}

func (s *Store) GetAllTiposActividad(ctx context.Context, category string) ([]TipoActividad, error) {
	query := `SELECT id, nombre, category_key, data, saved_at, is_offline FROM tipos_actividad`
	args := []any{}
	if category != "" {
		query += ` WHERE category_key = ?`
		args = append(args, category)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select tipos de actividad: %w", err)
	}
	defer rows.Close()

	var result []TipoActividad
	for rows.Next() {
		t := TipoActividad{}
		var savedAt string
		var data []byte
		if err := rows.Scan(&t.ID, &t.Nombre, &t.CategoryKey, &data, &savedAt, &t.IsOffline); err != nil {
			return nil, err
		}
		t.Data = data
		t.SavedAt = parseTime(savedAt)
		result = append(result, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) DeleteTipoActividad(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM tipos_actividad WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete tipo de actividad: %w", err)
	}
	return nil
}

func (s *Store) CountTiposActividad(ctx context.Context) (int, error) {
	return s.count(ctx, "tipos_actividad")
}
