package export

import (
	"context"
	"fmt"
	"time"

	"casedesk/api/internal/listing"
	"casedesk/api/internal/store"
)

// DataStore is the read side the dossier needs.
type DataStore interface {
	GetCaseDetail(ctx context.Context, id string) (store.CaseDetail, error)
	ListDeadlinesByCase(ctx context.Context, caseID string) ([]store.Deadline, error)
	ListMediaByCase(ctx context.Context, caseID string) ([]store.Media, error)
}

type renderFunc func(ctx context.Context, html, title string) (*Result, error)

// Service provides case dossier export
type Service struct {
	store      DataStore
	now        func() time.Time
	renderPDF  renderFunc
	renderDOCX renderFunc
}

// NewService creates a new export service
func NewService(store DataStore) *Service {
	return &Service{
		store:      store,
		now:        time.Now,
		renderPDF:  exportPDF,
		renderDOCX: exportDOCX,
	}
}

// Export generates the dossier of one case in the requested format.
func (s *Service) Export(ctx context.Context, req Request) (*Result, error) {
	if req.Format != FormatPDF && req.Format != FormatDOCX {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, req.Format)
	}

	detail, err := s.store.GetCaseDetail(ctx, req.CaseID)
	if err != nil {
		return nil, fmt.Errorf("get case: %w", err)
	}
	deadlines, err := s.store.ListDeadlinesByCase(ctx, req.CaseID)
	if err != nil {
		return nil, fmt.Errorf("list deadlines: %w", err)
	}
	media, err := s.store.ListMediaByCase(ctx, req.CaseID)
	if err != nil {
		return nil, fmt.Errorf("list media: %w", err)
	}

	html, err := RenderDossierHTML(buildTemplateData(detail, deadlines, media, s.now()))
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}

	title := detail.Code + " " + detail.Title
	switch req.Format {
	case FormatDOCX:
		return s.renderDOCX(ctx, html, title)
	default:
		return s.renderPDF(ctx, html, title)
	}
}

func buildTemplateData(detail store.CaseDetail, deadlines []store.Deadline, media []store.Media, generatedAt time.Time) TemplateData {
	data := TemplateData{
		Code:         detail.Code,
		Title:        detail.Title,
		Description:  detail.Description,
		EntryDate:    listing.FormatDate(&detail.EntryDate),
		CaseType:     detail.CaseType,
		Status:       detail.Status,
		ClosedAt:     listing.FormatDate(detail.ClosedAt),
		Owner:        detail.OwnerName,
		GeneratedAt:  listing.FormatDateTime(&generatedAt),
		Participants: make([]TemplateParticipant, 0, len(detail.Participants)),
		Tags:         make([]string, 0, len(detail.Tags)),
		Deadlines:    make([]TemplateDeadline, 0, len(deadlines)),
		Media:        make([]TemplateMedia, 0, len(media)),
	}
	for _, p := range detail.Participants {
		kind := "Individual"
		if p.Kind == store.ParticipantLegalEntity {
			kind = "Legal entity"
		}
		data.Participants = append(data.Participants, TemplateParticipant{Name: p.Name, Kind: kind, Role: p.Role})
	}
	for _, tag := range detail.Tags {
		data.Tags = append(data.Tags, tag.Name)
	}
	for _, d := range deadlines {
		state := "Open"
		switch {
		case d.CompletedAt != nil:
			state = "Completed " + listing.FormatDate(d.CompletedAt)
		case d.DueAt.Before(generatedAt):
			state = "Overdue"
		}
		data.Deadlines = append(data.Deadlines, TemplateDeadline{
			Title:       d.Title,
			Description: d.Description,
			DueAt:       listing.FormatDateTime(&d.DueAt),
			State:       state,
		})
	}
	for _, m := range media {
		tags := make([]string, 0, len(m.Tags))
		for _, tag := range m.Tags {
			tags = append(tags, tag.Name)
		}
		data.Media = append(data.Media, TemplateMedia{
			FileName: m.FileName,
			Size:     humanSize(m.SizeBytes),
			Uploaded: listing.FormatDate(&m.CreatedAt),
			Tags:     tags,
		})
	}
	return data
}

func humanSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGT"[exp])
}
