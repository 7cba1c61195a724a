package app

import (
	"context"
	"strings"

	"casedesk/api/internal/listing"
	"casedesk/api/internal/store"
	"casedesk/api/internal/util"
)

// Case types, statuses and tags are small tables: they are loaded whole and
// filtered and paged in memory.

func (s *Service) ListCaseTypes(ctx context.Context, q listing.Query) (listing.Page[caseTypeView], error) {
	items, err := s.store.ListCaseTypes(ctx)
	if err != nil {
		return listing.Page[caseTypeView]{}, err
	}
	page := listing.Apply(items, q, func(item store.CaseType) []string {
		return []string{item.Name, item.Description}
	})
	return listing.Map(page, toCaseTypeView), nil
}

func (s *Service) GetCaseType(ctx context.Context, id string) (caseTypeView, error) {
	item, err := s.store.GetCaseType(ctx, id)
	if err != nil {
		return caseTypeView{}, err
	}
	return toCaseTypeView(item), nil
}

func (s *Service) CreateCaseType(ctx context.Context, input CaseTypeInput) (caseTypeView, error) {
	if err := s.validateInput(input); err != nil {
		return caseTypeView{}, err
	}
	item := store.CaseType{
		ID:          util.NewID("ctype"),
		Name:        strings.TrimSpace(input.Name),
		Description: strings.TrimSpace(input.Description),
	}
	if err := s.store.InsertCaseType(ctx, item); err != nil {
		return caseTypeView{}, err
	}
	s.afterWrite(ctx)
	return s.GetCaseType(ctx, item.ID)
}

func (s *Service) UpdateCaseType(ctx context.Context, id string, input CaseTypeInput) (caseTypeView, error) {
	if err := s.validateInput(input); err != nil {
		return caseTypeView{}, err
	}
	if err := s.store.UpdateCaseType(ctx, store.CaseType{
		ID:          id,
		Name:        strings.TrimSpace(input.Name),
		Description: strings.TrimSpace(input.Description),
	}); err != nil {
		return caseTypeView{}, err
	}
	s.afterWrite(ctx)
	return s.GetCaseType(ctx, id)
}

func (s *Service) DeleteCaseType(ctx context.Context, id string) error {
	if err := s.store.DeleteCaseType(ctx, id); err != nil {
		return err
	}
	s.afterWrite(ctx)
	return nil
}

func (s *Service) ListStatuses(ctx context.Context, q listing.Query) (listing.Page[statusView], error) {
	items, err := s.store.ListStatuses(ctx)
	if err != nil {
		return listing.Page[statusView]{}, err
	}
	page := listing.Apply(items, q, func(item store.Status) []string {
		return []string{item.Name, item.Description}
	})
	return listing.Map(page, toStatusView), nil
}

func (s *Service) GetStatus(ctx context.Context, id string) (statusView, error) {
	item, err := s.store.GetStatus(ctx, id)
	if err != nil {
		return statusView{}, err
	}
	return toStatusView(item), nil
}

func statusFromInput(id string, input StatusInput) store.Status {
	return store.Status{
		ID:          id,
		Name:        strings.TrimSpace(input.Name),
		Description: strings.TrimSpace(input.Description),
		Color:       strings.ToUpper(input.Color),
		IsClosed:    input.IsClosed,
		SortOrder:   input.SortOrder,
	}
}

func (s *Service) CreateStatus(ctx context.Context, input StatusInput) (statusView, error) {
	if err := s.validateInput(input); err != nil {
		return statusView{}, err
	}
	item := statusFromInput(util.NewID("status"), input)
	if err := s.store.InsertStatus(ctx, item); err != nil {
		return statusView{}, err
	}
	s.afterWrite(ctx)
	return s.GetStatus(ctx, item.ID)
}

func (s *Service) UpdateStatus(ctx context.Context, id string, input StatusInput) (statusView, error) {
	if err := s.validateInput(input); err != nil {
		return statusView{}, err
	}
	if err := s.store.UpdateStatus(ctx, statusFromInput(id, input)); err != nil {
		return statusView{}, err
	}
	s.afterWrite(ctx)
	return s.GetStatus(ctx, id)
}

func (s *Service) DeleteStatus(ctx context.Context, id string) error {
	if err := s.store.DeleteStatus(ctx, id); err != nil {
		return err
	}
	s.afterWrite(ctx)
	return nil
}

func (s *Service) ListTags(ctx context.Context, q listing.Query) (listing.Page[tagView], error) {
	items, err := s.store.ListTags(ctx)
	if err != nil {
		return listing.Page[tagView]{}, err
	}
	page := listing.Apply(items, q, func(item store.Tag) []string {
		return []string{item.Name, item.Description}
	})
	return listing.Map(page, toTagView), nil
}

func (s *Service) GetTag(ctx context.Context, id string) (tagView, error) {
	item, err := s.store.GetTag(ctx, id)
	if err != nil {
		return tagView{}, err
	}
	return toTagView(item), nil
}

func tagFromInput(id string, input TagInput) store.Tag {
	return store.Tag{
		ID:          id,
		Name:        strings.TrimSpace(input.Name),
		Description: strings.TrimSpace(input.Description),
		Color:       strings.ToUpper(input.Color),
	}
}

func (s *Service) CreateTag(ctx context.Context, input TagInput) (tagView, error) {
	if err := s.validateInput(input); err != nil {
		return tagView{}, err
	}
	item := tagFromInput(util.NewID("tag"), input)
	if err := s.store.InsertTag(ctx, item); err != nil {
		return tagView{}, err
	}
	return s.GetTag(ctx, item.ID)
}

func (s *Service) UpdateTag(ctx context.Context, id string, input TagInput) (tagView, error) {
	if err := s.validateInput(input); err != nil {
		return tagView{}, err
	}
	if err := s.store.UpdateTag(ctx, tagFromInput(id, input)); err != nil {
		return tagView{}, err
	}
	return s.GetTag(ctx, id)
}

func (s *Service) DeleteTag(ctx context.Context, id string) error {
	return s.store.DeleteTag(ctx, id)
}
