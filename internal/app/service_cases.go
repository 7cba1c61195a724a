package app

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"casedesk/api/internal/casehistory"
	"casedesk/api/internal/export"
	"casedesk/api/internal/listing"
	"casedesk/api/internal/search"
	"casedesk/api/internal/store"
	"casedesk/api/internal/util"
)

const historyLimit = 100

type CaseListFilter struct {
	listing.Query
	CaseTypeID string
	StatusID   string
	TagID      string
}

func (s *Service) ListCases(ctx context.Context, filter CaseListFilter) (listing.Page[caseView], error) {
	items, total, err := s.store.SearchCases(ctx, store.CaseFilter{
		Search:     filter.Search,
		CaseTypeID: filter.CaseTypeID,
		StatusID:   filter.StatusID,
		TagID:      filter.TagID,
		Limit:      filter.PageSize,
		Offset:     filter.Offset(),
	})
	if err != nil {
		return listing.Page[caseView]{}, err
	}
	return listing.Map(listing.NewPage(items, filter.Query, total), toCaseView), nil
}

func (s *Service) GetCase(ctx context.Context, id string) (caseDetailView, error) {
	detail, err := s.store.GetCaseDetail(ctx, id)
	if err != nil {
		return caseDetailView{}, err
	}
	return toCaseDetailView(detail), nil
}

// checkCaseInput validates the body and the references it names. It returns
// the parsed case without ID or owner.
func (s *Service) checkCaseInput(ctx context.Context, id string, input CaseInput) (store.LegalCase, error) {
	if err := s.validateInput(input); err != nil {
		return store.LegalCase{}, err
	}
	entryDate, err := listing.ParseDate(input.EntryDate)
	if err != nil || entryDate == nil {
		return store.LegalCase{}, fieldError("entryDate", "must be a date in YYYY-MM-DD format")
	}

	fields := FieldErrors{}
	if _, err := s.store.GetCaseType(ctx, input.CaseTypeID); err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return store.LegalCase{}, err
		}
		fields["caseTypeId"] = "does not exist"
	}
	var statusID *string
	if trimmed := strings.TrimSpace(input.StatusID); trimmed != "" {
		if _, err := s.store.GetStatus(ctx, trimmed); err != nil {
			if !errors.Is(err, sql.ErrNoRows) {
				return store.LegalCase{}, err
			}
			fields["statusId"] = "does not exist"
		}
		statusID = &trimmed
	}
	for _, tagID := range input.TagIDs {
		if _, err := s.store.GetTag(ctx, tagID); err != nil {
			if !errors.Is(err, sql.ErrNoRows) {
				return store.LegalCase{}, err
			}
			fields["tagIds"] = "contains an unknown tag"
			break
		}
	}
	for _, p := range input.Participants {
		known, err := s.participantExists(ctx, p)
		if err != nil {
			return store.LegalCase{}, err
		}
		if !known {
			fields["participants"] = unknownParticipant
			break
		}
	}
	if len(fields) > 0 {
		return store.LegalCase{}, validationFailed(fields)
	}

	code := strings.TrimSpace(input.Code)
	taken, err := s.store.ExistsCode(ctx, code, id)
	if err != nil {
		return store.LegalCase{}, err
	}
	if taken {
		return store.LegalCase{}, domainError(http.StatusConflict, "CONFLICT", "Case code already in use", FieldErrors{"code": "is already in use"})
	}

	return store.LegalCase{
		ID:          id,
		Code:        code,
		Title:       strings.TrimSpace(input.Title),
		Description: strings.TrimSpace(input.Description),
		EntryDate:   *entryDate,
		CaseTypeID:  input.CaseTypeID,
		StatusID:    statusID,
	}, nil
}

const unknownParticipant = "contains an unknown individual or legal entity"

func (s *Service) participantExists(ctx context.Context, p ParticipantInput) (bool, error) {
	id := strings.TrimSpace(p.ID)
	var err error
	switch p.Kind {
	case store.ParticipantIndividual:
		_, err = s.store.GetIndividual(ctx, id)
	case store.ParticipantLegalEntity:
		_, err = s.store.GetLegalEntity(ctx, id)
	}
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

func participantsFromInput(items []ParticipantInput) []store.CaseParticipant {
	out := make([]store.CaseParticipant, 0, len(items))
	for _, p := range items {
		out = append(out, store.CaseParticipant{Kind: p.Kind, ID: strings.TrimSpace(p.ID), Role: strings.TrimSpace(p.Role)})
	}
	return out
}

func (s *Service) CreateCase(ctx context.Context, sess Session, input CaseInput) (caseDetailView, error) {
	id := util.NewID("case")
	item, err := s.checkCaseInput(ctx, "", input)
	if err != nil {
		return caseDetailView{}, err
	}
	item.ID = id
	item.OwnerID = sess.UserID

	if err := s.store.InsertCase(ctx, item, caseLinks(input)); err != nil {
		return caseDetailView{}, linkError(err)
	}
	return s.afterCaseWrite(ctx, sess, id, "Create case "+item.Code)
}

func (s *Service) UpdateCase(ctx context.Context, sess Session, id string, input CaseInput) (caseDetailView, error) {
	if _, err := s.store.GetCase(ctx, id); err != nil {
		return caseDetailView{}, err
	}
	item, err := s.checkCaseInput(ctx, id, input)
	if err != nil {
		return caseDetailView{}, err
	}
	if err := s.store.UpdateCase(ctx, item, caseLinks(input)); err != nil {
		return caseDetailView{}, linkError(err)
	}
	return s.afterCaseWrite(ctx, sess, id, "Update case "+item.Code)
}

func caseLinks(input CaseInput) store.CaseLinks {
	tagIDs := input.TagIDs
	if tagIDs == nil {
		tagIDs = []string{}
	}
	return store.CaseLinks{Participants: participantsFromInput(input.Participants), TagIDs: tagIDs}
}

// linkError reports a foreign key failure raised while the links were written,
// which happens when a participant is deleted between validation and write.
func linkError(err error) error {
	if status, code, _, _ := mapError(err); status == http.StatusConflict && code == "IN_USE" {
		return fieldError("participants", unknownParticipant)
	}
	return err
}

// afterCaseWrite records history, refreshes the search index and returns the
// fresh detail. History and index failures are logged, not returned.
func (s *Service) afterCaseWrite(ctx context.Context, sess Session, id, message string) (caseDetailView, error) {
	detail, err := s.store.GetCaseDetail(ctx, id)
	if err != nil {
		return caseDetailView{}, err
	}
	if s.history != nil {
		if _, _, err := s.history.Record(id, snapshotOf(detail), sess.UserName, message); err != nil {
			s.logger.Error("record case history", zap.String("case_id", id), zap.Error(err))
		}
	}
	if s.search != nil {
		s.search.IndexCase(search.CaseRecord{
			ID:          detail.ID,
			Code:        detail.Code,
			Title:       detail.Title,
			Description: detail.Description,
			CaseTypeID:  detail.CaseTypeID,
			CaseType:    detail.CaseType,
			Status:      detail.Status,
		})
	}
	s.afterWrite(ctx)
	return toCaseDetailView(detail), nil
}

func snapshotOf(detail store.CaseDetail) casehistory.Snapshot {
	snap := casehistory.Snapshot{
		Code:         detail.Code,
		Title:        detail.Title,
		Description:  detail.Description,
		EntryDate:    listing.FormatDate(&detail.EntryDate),
		CaseType:     detail.CaseType,
		Status:       detail.Status,
		Participants: make([]casehistory.Participant, 0, len(detail.Participants)),
		Tags:         make([]string, 0, len(detail.Tags)),
	}
	for _, p := range detail.Participants {
		snap.Participants = append(snap.Participants, casehistory.Participant{Kind: p.Kind, ID: p.ID, Name: p.Name, Role: p.Role})
	}
	for _, tag := range detail.Tags {
		snap.Tags = append(snap.Tags, tag.Name)
	}
	return snap
}

// DeleteCase removes the case row and, best effort, its stored attachments
// and history repository.
func (s *Service) DeleteCase(ctx context.Context, id string) error {
	attachments, err := s.store.ListMediaByCase(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteCase(ctx, id); err != nil {
		return err
	}
	if s.objects != nil {
		for _, item := range attachments {
			if err := s.objects.Remove(ctx, item.ObjectKey); err != nil {
				s.logger.Warn("remove attachment object", zap.String("media_id", item.ID), zap.Error(err))
			}
		}
	}
	if s.history != nil {
		if err := s.history.Remove(id); err != nil {
			s.logger.Warn("remove case history", zap.String("case_id", id), zap.Error(err))
		}
	}
	if s.search != nil {
		s.search.Delete(search.ResultCase, id)
	}
	s.afterWrite(ctx)
	return nil
}

func (s *Service) CaseHistory(ctx context.Context, id string) ([]casehistory.Commit, error) {
	if _, err := s.store.GetCase(ctx, id); err != nil {
		return nil, err
	}
	if s.history == nil {
		return []casehistory.Commit{}, nil
	}
	return s.history.History(id, historyLimit)
}

func (s *Service) CaseSnapshot(ctx context.Context, id, hash string) (map[string]any, error) {
	if _, err := s.store.GetCase(ctx, id); err != nil {
		return nil, err
	}
	if s.history == nil {
		return nil, casehistory.ErrNotFound
	}
	snap, commit, err := s.history.SnapshotAt(id, hash)
	if err != nil {
		return nil, err
	}
	return map[string]any{"commit": commit, "snapshot": snap}, nil
}

func (s *Service) ExportCase(ctx context.Context, id string, format export.Format) (*export.Result, error) {
	if s.exporter == nil {
		return nil, export.ErrPDFDependencyMissing
	}
	return s.exporter.Export(ctx, export.Request{CaseID: id, Format: format})
}
