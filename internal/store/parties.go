package store

import (
	"context"
	"database/sql"
	"fmt"
)

const individualColumns = `id, first_name, last_name, email, phone, address, national_id, birth_date, notes, created_at, updated_at`

func scanIndividual(row interface{ Scan(...any) error }) (Individual, error) {
	var item Individual
	var birthDate sql.NullTime
	if err := row.Scan(&item.ID, &item.FirstName, &item.LastName, &item.Email, &item.Phone, &item.Address,
		&item.NationalID, &birthDate, &item.Notes, &item.CreatedAt, &item.UpdatedAt); err != nil {
		return Individual{}, err
	}
	if birthDate.Valid {
		item.BirthDate = &birthDate.Time
	}
	return item, nil
}

// SearchIndividuals returns one page of individuals whose name, email or notes
// contain search, and the total number of matches.
func (s *PostgresStore) SearchIndividuals(ctx context.Context, search string, limit, offset int) ([]Individual, int, error) {
	const where = `
		WHERE $1 = '' OR first_name ILIKE $2 OR last_name ILIKE $2
			OR (first_name || ' ' || last_name) ILIKE $2 OR email ILIKE $2 OR notes ILIKE $2`
	pattern := likePattern(search)

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM individuals`+where, search, pattern).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count individuals: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+individualColumns+` FROM individuals`+where+`
		ORDER BY last_name, first_name, id
		LIMIT $3 OFFSET $4
	`, search, pattern, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("search individuals: %w", err)
	}
	defer rows.Close()

	items := make([]Individual, 0)
	for rows.Next() {
		item, err := scanIndividual(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan individual: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate individuals: %w", err)
	}
	return items, total, nil
}

func (s *PostgresStore) GetIndividual(ctx context.Context, id string) (Individual, error) {
	return scanIndividual(s.db.QueryRowContext(ctx, `SELECT `+individualColumns+` FROM individuals WHERE id=$1`, id))
}

func (s *PostgresStore) InsertIndividual(ctx context.Context, item Individual) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO individuals (id, first_name, last_name, email, phone, address, national_id, birth_date, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, item.ID, item.FirstName, item.LastName, item.Email, item.Phone, item.Address, item.NationalID, nullTime(item.BirthDate), item.Notes)
	if err != nil {
		return fmt.Errorf("insert individual: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateIndividual(ctx context.Context, item Individual) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE individuals
		SET first_name=$2, last_name=$3, email=$4, phone=$5, address=$6, national_id=$7, birth_date=$8, notes=$9, updated_at=NOW()
		WHERE id=$1
	`, item.ID, item.FirstName, item.LastName, item.Email, item.Phone, item.Address, item.NationalID, nullTime(item.BirthDate), item.Notes)
	if err != nil {
		return fmt.Errorf("update individual: %w", err)
	}
	return requireAffected(result)
}

func (s *PostgresStore) DeleteIndividual(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM individuals WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete individual: %w", err)
	}
	return requireAffected(result)
}

const legalEntityColumns = `id, name, registration_number, tax_id, email, phone, address, description, created_at, updated_at`

func scanLegalEntity(row interface{ Scan(...any) error }) (LegalEntity, error) {
	var item LegalEntity
	if err := row.Scan(&item.ID, &item.Name, &item.RegistrationNumber, &item.TaxID, &item.Email, &item.Phone,
		&item.Address, &item.Description, &item.CreatedAt, &item.UpdatedAt); err != nil {
		return LegalEntity{}, err
	}
	return item, nil
}

func (s *PostgresStore) SearchLegalEntities(ctx context.Context, search string, limit, offset int) ([]LegalEntity, int, error) {
	const where = `
		WHERE $1 = '' OR name ILIKE $2 OR description ILIKE $2 OR registration_number ILIKE $2 OR tax_id ILIKE $2`
	pattern := likePattern(search)

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM legal_entities`+where, search, pattern).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count legal entities: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+legalEntityColumns+` FROM legal_entities`+where+`
		ORDER BY name, id
		LIMIT $3 OFFSET $4
	`, search, pattern, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("search legal entities: %w", err)
	}
	defer rows.Close()

	items := make([]LegalEntity, 0)
	for rows.Next() {
		item, err := scanLegalEntity(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan legal entity: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate legal entities: %w", err)
	}
	return items, total, nil
}

func (s *PostgresStore) GetLegalEntity(ctx context.Context, id string) (LegalEntity, error) {
	return scanLegalEntity(s.db.QueryRowContext(ctx, `SELECT `+legalEntityColumns+` FROM legal_entities WHERE id=$1`, id))
}

func (s *PostgresStore) InsertLegalEntity(ctx context.Context, item LegalEntity) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO legal_entities (id, name, registration_number, tax_id, email, phone, address, description)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, item.ID, item.Name, item.RegistrationNumber, item.TaxID, item.Email, item.Phone, item.Address, item.Description)
	if err != nil {
		return fmt.Errorf("insert legal entity: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateLegalEntity(ctx context.Context, item LegalEntity) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE legal_entities
		SET name=$2, registration_number=$3, tax_id=$4, email=$5, phone=$6, address=$7, description=$8, updated_at=NOW()
		WHERE id=$1
	`, item.ID, item.Name, item.RegistrationNumber, item.TaxID, item.Email, item.Phone, item.Address, item.Description)
	if err != nil {
		return fmt.Errorf("update legal entity: %w", err)
	}
	return requireAffected(result)
}

func (s *PostgresStore) DeleteLegalEntity(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM legal_entities WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete legal entity: %w", err)
	}
	return requireAffected(result)
}
