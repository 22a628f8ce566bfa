package mirror

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dcornejo/ayudasync/internal/common"
)

// Beneficiarios, personal and colaboradores: the people-shaped collections.

func (s *Store) PutBeneficiario(ctx context.Context, b *Beneficiario) error {
	if b.ID == "" {
		return fmt.Errorf("beneficiario without id")
	}
	b.SavedAt = s.now()
	b.IsOffline = true

	query := `INSERT INTO beneficiarios (id, nombre, comunidad_id, data, saved_at, is_offline, modified_offline)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET nombre = excluded.nombre,
				comunidad_id = excluded.comunidad_id,
				data = excluded.data,
				saved_at = excluded.saved_at,
				is_offline = excluded.is_offline,
				modified_offline = excluded.modified_offline
	`
	_, err := s.db.ExecContext(ctx, query,
		b.ID, b.Nombre, b.ComunidadID, []byte(b.Data), b.SavedAt.UTC().Format(timeLayout), b.IsOffline, b.ModifiedOffline)
	if err != nil {
		return fmt.Errorf("failed to upsert beneficiario: %w", err)
	}
	return nil
}

func (s *Store) GetBeneficiario(ctx context.Context, id string) (*Beneficiario, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, nombre, comunidad_id, data, saved_at, is_offline, modified_offline FROM beneficiarios WHERE id = ?`, id)

	b := &Beneficiario{}
	var savedAt string
	var data []byte
	err := row.Scan(&b.ID, &b.Nombre, &b.ComunidadID, &data, &savedAt, &b.IsOffline, &b.ModifiedOffline)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("beneficiario %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get beneficiario: %w", err)
	}
	b.Data = data
	b.SavedAt = parseTime(savedAt)
	return b, nil
}

// GetAllBeneficiarios lists beneficiaries, optionally filtered by community.
func (s *Store) GetAllBeneficiarios(ctx context.Context, comunidadID string) ([]Beneficiario, error) {
	query := `SELECT id, nombre, comunidad_id, data, saved_at, is_offline, modified_offline FROM beneficiarios`
	args := []any{}
	if comunidadID != "" {
		query += ` WHERE comunidad_id = ?`
		args = append(args, comunidadID)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select beneficiarios: %w", err)
	}
	defer rows.Close()

	var result []Beneficiario
	for rows.Next() {
		b := Beneficiario{}
		var savedAt string
		var data []byte
		if err := rows.Scan(&b.ID, &b.Nombre, &b.ComunidadID, &data, &savedAt, &b.IsOffline, &b.ModifiedOffline); err != nil {
			return nil, err
		}
		b.Data = data
		b.SavedAt = parseTime(savedAt)
		result = append(result, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) DeleteBeneficiario(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM beneficiarios WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete beneficiario: %w", err)
	}
	return nil
}

func (s *Store) CountBeneficiarios(ctx context.Context) (int, error) {
	return s.count(ctx, "beneficiarios")
}

func (s *Store) MarkBeneficiarioModifiedOffline(ctx context.Context, id string, modified bool) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE beneficiarios SET modified_offline = ? WHERE id = ?`, modified, id)
	if err != nil {
		return fmt.Errorf("failed to mark beneficiario: %w", err)
	}
	if ra, err := res.RowsAffected(); err == nil && ra == 0 {
		return fmt.Errorf("beneficiario %s: %w", id, common.ErrNotFound)
	}
	return nil
}

func (s *Store) PutPersonal(ctx context.Context, p *Personal) error {
	if p.ID == "" {
		return fmt.Errorf("personal without id")
	}
	p.SavedAt = s.now()
	p.IsOffline = true

	query := `INSERT INTO personal (id, nombre, cargo, data, saved_at, is_offline)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET nombre = excluded.nombre,
				cargo = excluded.cargo,
				data = excluded.data,
				saved_at = excluded.saved_at,
				is_offline = excluded.is_offline
	`
	_, err := s.db.ExecContext(ctx, query,
		p.ID, p.Nombre, p.Cargo, []byte(p.Data), p.SavedAt.UTC().Format(timeLayout), p.IsOffline)
	if err != nil {
		return fmt.Errorf("failed to upsert personal: %w", err)
	}
	return nil
}

func (s *Store) GetPersonal(ctx context.Context, id string) (*Personal, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, nombre, cargo, data, saved_at, is_offline FROM personal WHERE id = ?`, id)

	p := &Personal{}
	var savedAt string
	var data []byte
	err := row.Scan(&p.ID, &p.Nombre, &p.Cargo, &data, &savedAt, &p.IsOffline)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("personal %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get personal: %w", err)
	}
	p.Data = data
	p.SavedAt = parseTime(savedAt)
	return p, nil
}

func (s *Store) GetAllPersonal(ctx context.Context) ([]Personal, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, nombre, cargo, data, saved_at, is_offline FROM personal`)
	if err != nil {
		return nil, fmt.Errorf("failed to select personal: %w", err)
	}
	defer rows.Close()

	var result []Personal
	for rows.Next() {
		p := Personal{}
		var savedAt string
		var data []byte
		if err := rows.Scan(&p.ID, &p.Nombre, &p.Cargo, &data, &savedAt, &p.IsOffline); err != nil {
			return nil, err
		}
		p.Data = data
		p.SavedAt = parseTime(savedAt)
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) DeletePersonal(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM personal WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete personal: %w", err)
	}
	return nil
}

func (s *Store) CountPersonal(ctx context.Context) (int, error) {
	return s.count(ctx, "personal")
}

func (s *Store) PutColaborador(ctx context.Context, c *Colaborador) error {
	if c.ID == "" {
		return fmt.Errorf("colaborador without id")
	}
	c.SavedAt = s.now()
	c.IsOffline = true

	query := `INSERT INTO colaboradores (id, nombre, data, saved_at, is_offline)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET nombre = excluded.nombre,
				data = excluded.data,
				saved_at = excluded.saved_at,
				is_offline = excluded.is_offline
	`
	_, err := s.db.ExecContext(ctx, query,
		c.ID, c.Nombre, []byte(c.Data), c.SavedAt.UTC().Format(timeLayout), c.IsOffline)
	if err != nil {
		return fmt.Errorf("failed to upsert colaborador: %w", err)
	}
	return nil
}

func (s *Store) GetColaborador(ctx context.Context, id string) (*Colaborador, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, nombre, data, saved_at, is_offline FROM colaboradores WHERE id = ?`, id)

	c := &Colaborador{}
	var savedAt string
	var data []byte
	err := row.Scan(&c.ID, &c.Nombre, &data, &savedAt, &c.IsOffline)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("colaborador %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get colaborador: %w", err)
	}
	c.Data = data
	c.SavedAt = parseTime(savedAt)
	return c, nil
}

func (s *Store) GetAllColaboradores(ctx context.Context) ([]Colaborador, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, nombre, data, saved_at, is_offline FROM colaboradores`)
	if err != nil {
		return nil, fmt.Errorf("failed to select colaboradores: %w", err)
	}
	defer rows.Close()

	var result []Colaborador
	for rows.Next() {
		c := Colaborador{}
		var savedAt string
		var data []byte
		if err := rows.Scan(&c.ID, &c.Nombre, &data, &savedAt, &c.IsOffline); err != nil {
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

func (s *Store) DeleteColaborador(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM colaboradores WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete colaborador: %w", err)
	}
	return nil
}

func (s *Store) CountColaboradores(ctx context.Context) (int, error) {
	return s.count(ctx, "colaboradores")
}
