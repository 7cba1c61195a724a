package app

import (
	"time"

	"casedesk/api/internal/listing"
	"casedesk/api/internal/store"
)

// JSON shapes returned by the API. Dates go through listing.FormatDate so a
// missing date is "" rather than 0001-01-01.

type caseTypeView struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	UpdatedAt   string `json:"updatedAt"`
}

func toCaseTypeView(item store.CaseType) caseTypeView {
	return caseTypeView{ID: item.ID, Name: item.Name, Description: item.Description, UpdatedAt: formatTime(item.UpdatedAt)}
}

type statusView struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Color       string `json:"color"`
	IsClosed    bool   `json:"isClosed"`
	SortOrder   int    `json:"sortOrder"`
	UpdatedAt   string `json:"updatedAt"`
}

func toStatusView(item store.Status) statusView {
	return statusView{
		ID: item.ID, Name: item.Name, Description: item.Description, Color: item.Color,
		IsClosed: item.IsClosed, SortOrder: item.SortOrder, UpdatedAt: formatTime(item.UpdatedAt),
	}
}

type tagView struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Color       string `json:"color"`
}

func toTagView(item store.Tag) tagView {
	return tagView{ID: item.ID, Name: item.Name, Description: item.Description, Color: item.Color}
}

func toTagViews(items []store.Tag) []tagView {
	out := make([]tagView, 0, len(items))
	for _, item := range items {
		out = append(out, toTagView(item))
	}
	return out
}

type individualView struct {
	ID         string `json:"id"`
	FirstName  string `json:"firstName"`
	LastName   string `json:"lastName"`
	FullName   string `json:"fullName"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	Address    string `json:"address"`
	NationalID string `json:"nationalId"`
	BirthDate  string `json:"birthDate"`
	Notes      string `json:"notes"`
	UpdatedAt  string `json:"updatedAt"`
}

func toIndividualView(item store.Individual) individualView {
	return individualView{
		ID: item.ID, FirstName: item.FirstName, LastName: item.LastName, FullName: item.FullName(),
		Email: item.Email, Phone: item.Phone, Address: item.Address, NationalID: item.NationalID,
		BirthDate: listing.FormatDate(item.BirthDate), Notes: item.Notes, UpdatedAt: formatTime(item.UpdatedAt),
	}
}

type legalEntityView struct {
	ID                 string `json:"id"`
	Name               string `json:"name"`
	RegistrationNumber string `json:"registrationNumber"`
	TaxID              string `json:"taxId"`
	Email              string `json:"email"`
	Phone              string `json:"phone"`
	Address            string `json:"address"`
	Description        string `json:"description"`
	UpdatedAt          string `json:"updatedAt"`
}

func toLegalEntityView(item store.LegalEntity) legalEntityView {
	return legalEntityView{
		ID: item.ID, Name: item.Name, RegistrationNumber: item.RegistrationNumber, TaxID: item.TaxID,
		Email: item.Email, Phone: item.Phone, Address: item.Address, Description: item.Description,
		UpdatedAt: formatTime(item.UpdatedAt),
	}
}

type caseView struct {
	ID          string `json:"id"`
	Code        string `json:"code"`
	Title       string `json:"title"`
	Description string `json:"description"`
	EntryDate   string `json:"entryDate"`
	CaseTypeID  string `json:"caseTypeId"`
	CaseType    string `json:"caseType"`
	StatusID    string `json:"statusId"`
	Status      string `json:"status"`
	ClosedAt    string `json:"closedAt"`
	OwnerID     string `json:"ownerId"`
	OwnerName   string `json:"ownerName"`
	UpdatedAt   string `json:"updatedAt"`
}

func toCaseView(item store.LegalCase) caseView {
	statusID := ""
	if item.StatusID != nil {
		statusID = *item.StatusID
	}
	return caseView{
		ID: item.ID, Code: item.Code, Title: item.Title, Description: item.Description,
		EntryDate: listing.FormatDate(&item.EntryDate), CaseTypeID: item.CaseTypeID, CaseType: item.CaseType,
		StatusID: statusID, Status: item.Status, ClosedAt: listing.FormatDateTime(item.ClosedAt),
		OwnerID: item.OwnerID, OwnerName: item.OwnerName, UpdatedAt: formatTime(item.UpdatedAt),
	}
}

type participantView struct {
	Kind string `json:"kind"`
	ID   string `json:"id"`
	Name string `json:"name"`
	Role string `json:"role"`
}

type caseDetailView struct {
	caseView
	Participants []participantView `json:"participants"`
	Tags         []tagView         `json:"tags"`
}

func toCaseDetailView(detail store.CaseDetail) caseDetailView {
	view := caseDetailView{
		caseView:     toCaseView(detail.LegalCase),
		Participants: make([]participantView, 0, len(detail.Participants)),
		Tags:         toTagViews(detail.Tags),
	}
	for _, p := range detail.Participants {
		view.Participants = append(view.Participants, participantView{Kind: p.Kind, ID: p.ID, Name: p.Name, Role: p.Role})
	}
	return view
}

type deadlineView struct {
	ID          string `json:"id"`
	CaseID      string `json:"caseId"`
	CaseCode    string `json:"caseCode"`
	Title       string `json:"title"`
	Description string `json:"description"`
	DueAt       string `json:"dueAt"`
	CompletedAt string `json:"completedAt"`
	Overdue     bool   `json:"overdue"`
}

func toDeadlineView(item store.Deadline, now time.Time) deadlineView {
	return deadlineView{
		ID: item.ID, CaseID: item.CaseID, CaseCode: item.CaseCode, Title: item.Title,
		Description: item.Description, DueAt: listing.FormatDateTime(&item.DueAt),
		CompletedAt: listing.FormatDateTime(item.CompletedAt),
		Overdue:     item.CompletedAt == nil && item.DueAt.Before(now),
	}
}

func toDeadlineViews(items []store.Deadline, now time.Time) []deadlineView {
	out := make([]deadlineView, 0, len(items))
	for _, item := range items {
		out = append(out, toDeadlineView(item, now))
	}
	return out
}

type mediaView struct {
	ID          string    `json:"id"`
	CaseID      string    `json:"caseId"`
	FileName    string    `json:"fileName"`
	ContentType string    `json:"contentType"`
	SizeBytes   int64     `json:"sizeBytes"`
	UploadedBy  string    `json:"uploadedBy"`
	CreatedAt   string    `json:"createdAt"`
	Tags        []tagView `json:"tags"`
}

func toMediaView(item store.Media) mediaView {
	return mediaView{
		ID: item.ID, CaseID: item.CaseID, FileName: item.FileName, ContentType: item.ContentType,
		SizeBytes: item.SizeBytes, UploadedBy: item.UploadedBy, CreatedAt: formatTime(item.CreatedAt),
		Tags: toTagViews(item.Tags),
	}
}

type todoView struct {
	ID       string `json:"id"`
	ListID   string `json:"listId"`
	Title    string `json:"title"`
	Done     bool   `json:"done"`
	Position int    `json:"position"`
}

func toTodoView(item store.Todo) todoView {
	return todoView{ID: item.ID, ListID: item.ListID, Title: item.Title, Done: item.Done, Position: item.Position}
}

type todoListView struct {
	ID    string     `json:"id"`
	Title string     `json:"title"`
	Todos []todoView `json:"todos"`
}

func toTodoListView(list store.TodoList) todoListView {
	view := todoListView{ID: list.ID, Title: list.Title, Todos: make([]todoView, 0, len(list.Todos))}
	for _, todo := range list.Todos {
		view.Todos = append(view.Todos, toTodoView(todo))
	}
	return view
}

func formatTime(t time.Time) string {
	return listing.FormatDateTime(&t)
}

func mapSlice[T, U any](items []T, fn func(T) U) []U {
	out := make([]U, 0, len(items))
	for _, item := range items {
		out = append(out, fn(item))
	}
	return out
}
