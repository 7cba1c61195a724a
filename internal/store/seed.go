package store

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"casedesk/api/internal/util"
)

// ReferenceSeed is the initial set of case types, statuses and tags.
type ReferenceSeed struct {
	CaseTypes []struct {
		Name        string `yaml:"name"`
		Description string `yaml:"description"`
	} `yaml:"caseTypes"`
	Statuses []struct {
		Name        string `yaml:"name"`
		Description string `yaml:"description"`
		Color       string `yaml:"color"`
		Closed      bool   `yaml:"closed"`
		Order       int    `yaml:"order"`
	} `yaml:"statuses"`
	Tags []struct {
		Name        string `yaml:"name"`
		Description string `yaml:"description"`
		Color       string `yaml:"color"`
	} `yaml:"tags"`
}

func LoadReferenceSeed(path string) (ReferenceSeed, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return ReferenceSeed{}, fmt.Errorf("read seed file: %w", err)
	}
	return ParseReferenceSeed(raw)
}

func ParseReferenceSeed(raw []byte) (ReferenceSeed, error) {
	var seed ReferenceSeed
	if err := yaml.Unmarshal(raw, &seed); err != nil {
		return ReferenceSeed{}, fmt.Errorf("parse seed file: %w", err)
	}
	for i, item := range seed.CaseTypes {
		if item.Name == "" {
			return ReferenceSeed{}, fmt.Errorf("case type %d has no name", i)
		}
	}
	for i, item := range seed.Statuses {
		if item.Name == "" {
			return ReferenceSeed{}, fmt.Errorf("status %d has no name", i)
		}
	}
	for i, item := range seed.Tags {
		if item.Name == "" {
			return ReferenceSeed{}, fmt.Errorf("tag %d has no name", i)
		}
	}
	return seed, nil
}

// ApplyReferenceSeed fills each reference table that is still empty.
// Tables that already hold rows are left alone.
func (s *PostgresStore) ApplyReferenceSeed(ctx context.Context, seed ReferenceSeed) error {
	if n, err := s.countRows(ctx, "case_types"); err != nil {
		return err
	} else if n == 0 {
		for _, item := range seed.CaseTypes {
			if err := s.InsertCaseType(ctx, CaseType{ID: util.NewID("ctype"), Name: item.Name, Description: item.Description}); err != nil {
				return err
			}
		}
	}

	if n, err := s.countRows(ctx, "statuses"); err != nil {
		return err
	} else if n == 0 {
		for _, item := range seed.Statuses {
			if err := s.InsertStatus(ctx, Status{
				ID:          util.NewID("status"),
				Name:        item.Name,
				Description: item.Description,
				Color:       item.Color,
				IsClosed:    item.Closed,
				SortOrder:   item.Order,
			}); err != nil {
				return err
			}
		}
	}

	if n, err := s.countRows(ctx, "tags"); err != nil {
		return err
	} else if n == 0 {
		for _, item := range seed.Tags {
			if err := s.InsertTag(ctx, Tag{ID: util.NewID("tag"), Name: item.Name, Description: item.Description, Color: item.Color}); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *PostgresStore) countRows(ctx context.Context, table string) (int, error) {
	var n int
	// table names come from the fixed set above
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return n, nil
}
