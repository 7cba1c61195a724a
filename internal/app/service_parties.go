package app

import (
	"context"
	"strings"

	"casedesk/api/internal/listing"
	"casedesk/api/internal/search"
	"casedesk/api/internal/store"
	"casedesk/api/internal/util"
)

func (s *Service) ListIndividuals(ctx context.Context, q listing.Query) (listing.Page[individualView], error) {
	items, total, err := s.store.SearchIndividuals(ctx, q.Search, q.PageSize, q.Offset())
	if err != nil {
		return listing.Page[individualView]{}, err
	}
	return listing.Map(listing.NewPage(items, q, total), toIndividualView), nil
}

func (s *Service) GetIndividual(ctx context.Context, id string) (individualView, error) {
	item, err := s.store.GetIndividual(ctx, id)
	if err != nil {
		return individualView{}, err
	}
	return toIndividualView(item), nil
}

func individualFromInput(id string, input IndividualInput) (store.Individual, error) {
	birthDate, err := listing.ParseDate(input.BirthDate)
	if err != nil {
		return store.Individual{}, fieldError("birthDate", "must be a date in YYYY-MM-DD format")
	}
	return store.Individual{
		ID:         id,
		FirstName:  strings.TrimSpace(input.FirstName),
		LastName:   strings.TrimSpace(input.LastName),
		Email:      strings.TrimSpace(input.Email),
		Phone:      strings.TrimSpace(input.Phone),
		Address:    strings.TrimSpace(input.Address),
		NationalID: strings.TrimSpace(input.NationalID),
		BirthDate:  birthDate,
		Notes:      strings.TrimSpace(input.Notes),
	}, nil
}

func (s *Service) CreateIndividual(ctx context.Context, input IndividualInput) (individualView, error) {
	if err := s.validateInput(input); err != nil {
		return individualView{}, err
	}
	item, err := individualFromInput(util.NewID("ind"), input)
	if err != nil {
		return individualView{}, err
	}
	if err := s.store.InsertIndividual(ctx, item); err != nil {
		return individualView{}, err
	}
	s.indexIndividual(item)
	s.afterWrite(ctx)
	return s.GetIndividual(ctx, item.ID)
}

func (s *Service) UpdateIndividual(ctx context.Context, id string, input IndividualInput) (individualView, error) {
	if err := s.validateInput(input); err != nil {
		return individualView{}, err
	}
	item, err := individualFromInput(id, input)
	if err != nil {
		return individualView{}, err
	}
	if err := s.store.UpdateIndividual(ctx, item); err != nil {
		return individualView{}, err
	}
	s.indexIndividual(item)
	return s.GetIndividual(ctx, id)
}

func (s *Service) DeleteIndividual(ctx context.Context, id string) error {
	if err := s.store.DeleteIndividual(ctx, id); err != nil {
		return err
	}
	if s.search != nil {
		s.search.Delete(search.ResultIndividual, id)
	}
	s.afterWrite(ctx)
	return nil
}

func (s *Service) indexIndividual(item store.Individual) {
	if s.search == nil {
		return
	}
	s.search.IndexIndividual(search.IndividualRecord{
		ID:    item.ID,
		Name:  item.FullName(),
		Email: item.Email,
		Notes: item.Notes,
	})
}

func (s *Service) ListLegalEntities(ctx context.Context, q listing.Query) (listing.Page[legalEntityView], error) {
	items, total, err := s.store.SearchLegalEntities(ctx, q.Search, q.PageSize, q.Offset())
	if err != nil {
		return listing.Page[legalEntityView]{}, err
	}
	return listing.Map(listing.NewPage(items, q, total), toLegalEntityView), nil
}

func (s *Service) GetLegalEntity(ctx context.Context, id string) (legalEntityView, error) {
	item, err := s.store.GetLegalEntity(ctx, id)
	if err != nil {
		return legalEntityView{}, err
	}
	return toLegalEntityView(item), nil
}

func legalEntityFromInput(id string, input LegalEntityInput) store.LegalEntity {
	return store.LegalEntity{
		ID:                 id,
		Name:               strings.TrimSpace(input.Name),
		RegistrationNumber: strings.TrimSpace(input.RegistrationNumber),
		TaxID:              strings.TrimSpace(input.TaxID),
		Email:              strings.TrimSpace(input.Email),
		Phone:              strings.TrimSpace(input.Phone),
		Address:            strings.TrimSpace(input.Address),
		Description:        strings.TrimSpace(input.Description),
	}
}

func (s *Service) CreateLegalEntity(ctx context.Context, input LegalEntityInput) (legalEntityView, error) {
	if err := s.validateInput(input); err != nil {
		return legalEntityView{}, err
	}
	item := legalEntityFromInput(util.NewID("org"), input)
	if err := s.store.InsertLegalEntity(ctx, item); err != nil {
		return legalEntityView{}, err
	}
	s.indexLegalEntity(item)
	s.afterWrite(ctx)
	return s.GetLegalEntity(ctx, item.ID)
}

func (s *Service) UpdateLegalEntity(ctx context.Context, id string, input LegalEntityInput) (legalEntityView, error) {
	if err := s.validateInput(input); err != nil {
		return legalEntityView{}, err
	}
	item := legalEntityFromInput(id, input)
	if err := s.store.UpdateLegalEntity(ctx, item); err != nil {
		return legalEntityView{}, err
	}
	s.indexLegalEntity(item)
	return s.GetLegalEntity(ctx, id)
}

func (s *Service) DeleteLegalEntity(ctx context.Context, id string) error {
	if err := s.store.DeleteLegalEntity(ctx, id); err != nil {
		return err
	}
	if s.search != nil {
		s.search.Delete(search.ResultLegalEntity, id)
	}
	s.afterWrite(ctx)
	return nil
}

func (s *Service) indexLegalEntity(item store.LegalEntity) {
	if s.search == nil {
		return
	}
	s.search.IndexLegalEntity(search.LegalEntityRecord{
		ID:                 item.ID,
		Name:               item.Name,
		RegistrationNumber: item.RegistrationNumber,
		Description:        item.Description,
	})
}
