package app

import (
	"context"
	"strings"
	"time"

	"casedesk/api/internal/listing"
	"casedesk/api/internal/store"
	"casedesk/api/internal/util"
)

// DefaultUpcomingWindow is the range of the upcoming deadline list when the
// caller gives no end date.
const DefaultUpcomingWindow = 30 * 24 * time.Hour

// parseDueAt accepts an RFC 3339 timestamp or a bare date. A bare date means
// the end of that day in UTC.
func parseDueAt(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, true
	}
	if t, err := time.Parse(listing.DateLayout, value); err == nil {
		return t.Add(24*time.Hour - time.Second), true
	}
	return time.Time{}, false
}

func (s *Service) ListCaseDeadlines(ctx context.Context, caseID string) ([]deadlineView, error) {
	if _, err := s.store.GetCase(ctx, caseID); err != nil {
		return nil, err
	}
	items, err := s.store.ListDeadlinesByCase(ctx, caseID)
	if err != nil {
		return nil, err
	}
	return toDeadlineViews(items, s.now()), nil
}

// parseRangeBound reads one end of a date range. A bare date is the start
// of that day in UTC; endOfDay moves it to the start of the next day so the
// range includes the whole day.
func parseRangeBound(value string, endOfDay bool) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, true
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, true
	}
	t, err := time.Parse(listing.DateLayout, value)
	if err != nil {
		return time.Time{}, false
	}
	if endOfDay {
		t = t.AddDate(0, 0, 1)
	}
	return t, true
}

// UpcomingDeadlines lists open deadlines due in [from, to). Missing bounds
// default to now and from plus DefaultUpcomingWindow.
func (s *Service) UpcomingDeadlines(ctx context.Context, fromValue, toValue string) ([]deadlineView, error) {
	now := s.now()
	from, ok := parseRangeBound(fromValue, false)
	if !ok {
		return nil, fieldError("from", "must be a date (YYYY-MM-DD) or an RFC 3339 timestamp")
	}
	to, ok := parseRangeBound(toValue, true)
	if !ok {
		return nil, fieldError("to", "must be a date (YYYY-MM-DD) or an RFC 3339 timestamp")
	}
	if from.IsZero() {
		from = now
	}
	if to.IsZero() {
		to = from.Add(DefaultUpcomingWindow)
	}
	if !to.After(from) {
		return nil, fieldError("to", "must be after from")
	}
	items, err := s.store.ListUpcomingDeadlines(ctx, from, to)
	if err != nil {
		return nil, err
	}
	return toDeadlineViews(items, now), nil
}

func (s *Service) OverdueDeadlines(ctx context.Context) ([]deadlineView, error) {
	now := s.now()
	items, err := s.store.ListOverdueDeadlines(ctx, now)
	if err != nil {
		return nil, err
	}
	return toDeadlineViews(items, now), nil
}

func (s *Service) checkDeadlineInput(input DeadlineInput) (time.Time, error) {
	if err := s.validateInput(input); err != nil {
		return time.Time{}, err
	}
	dueAt, ok := parseDueAt(input.DueAt)
	if !ok {
		return time.Time{}, fieldError("dueAt", "must be a date (YYYY-MM-DD) or an RFC 3339 timestamp")
	}
	return dueAt, nil
}

func (s *Service) CreateDeadline(ctx context.Context, sess Session, caseID string, input DeadlineInput) (deadlineView, error) {
	dueAt, err := s.checkDeadlineInput(input)
	if err != nil {
		return deadlineView{}, err
	}
	if _, err := s.store.GetCase(ctx, caseID); err != nil {
		return deadlineView{}, err
	}
	item := store.Deadline{
		ID:          util.NewID("dl"),
		CaseID:      caseID,
		Title:       strings.TrimSpace(input.Title),
		Description: strings.TrimSpace(input.Description),
		DueAt:       dueAt,
		CreatedBy:   sess.UserID,
	}
	if err := s.store.InsertDeadline(ctx, item); err != nil {
		return deadlineView{}, err
	}
	s.afterWrite(ctx)
	return s.getDeadline(ctx, item.ID)
}

func (s *Service) UpdateDeadline(ctx context.Context, id string, input DeadlineInput) (deadlineView, error) {
	dueAt, err := s.checkDeadlineInput(input)
	if err != nil {
		return deadlineView{}, err
	}
	if err := s.store.UpdateDeadline(ctx, store.Deadline{
		ID:          id,
		Title:       strings.TrimSpace(input.Title),
		Description: strings.TrimSpace(input.Description),
		DueAt:       dueAt,
	}); err != nil {
		return deadlineView{}, err
	}
	s.afterWrite(ctx)
	return s.getDeadline(ctx, id)
}

func (s *Service) CompleteDeadline(ctx context.Context, id string, done bool) (deadlineView, error) {
	if err := s.store.CompleteDeadline(ctx, id, done); err != nil {
		return deadlineView{}, err
	}
	s.afterWrite(ctx)
	return s.getDeadline(ctx, id)
}

func (s *Service) DeleteDeadline(ctx context.Context, id string) error {
	if err := s.store.DeleteDeadline(ctx, id); err != nil {
		return err
	}
	s.afterWrite(ctx)
	return nil
}

func (s *Service) getDeadline(ctx context.Context, id string) (deadlineView, error) {
	item, err := s.store.GetDeadline(ctx, id)
	if err != nil {
		return deadlineView{}, err
	}
	return toDeadlineView(item, s.now()), nil
}
