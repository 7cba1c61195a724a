package store

import "time"

type User struct {
	ID                    string
	DisplayName           string
	Email                 string
	PasswordHash          string
	Role                  string
	IsEmailVerified       bool
	VerificationToken     string
	VerificationExpiresAt *time.Time
	TOTPSecret            string
	TOTPEnabled           bool
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

type CaseType struct {
	ID          string
	Name        string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Status is the workflow state of a legal case. Closed statuses count as
// finished on the dashboard.
type Status struct {
	ID          string
	Name        string
	Description string
	Color       string
	IsClosed    bool
	SortOrder   int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Tag struct {
	ID          string
	Name        string
	Description string
	Color       string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Individual struct {
	ID         string
	FirstName  string
	LastName   string
	Email      string
	Phone      string
	Address    string
	NationalID string
	BirthDate  *time.Time
	Notes      string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (i Individual) FullName() string {
	switch {
	case i.FirstName == "":
		return i.LastName
	case i.LastName == "":
		return i.FirstName
	default:
		return i.FirstName + " " + i.LastName
	}
}

type LegalEntity struct {
	ID                 string
	Name               string
	RegistrationNumber string
	TaxID              string
	Email              string
	Phone              string
	Address            string
	Description        string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

type LegalCase struct {
	ID          string
	Code        string
	Title       string
	Description string
	EntryDate   time.Time
	CaseTypeID  string
	CaseType    string
	StatusID    *string
	Status      string
	ClosedAt    *time.Time
	OwnerID     string
	OwnerName   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CaseParticipant links an individual or a legal entity to a case with a
// free-form role such as "client" or "opposing party".
type CaseParticipant struct {
	Kind string // individual | legal_entity
	ID   string
	Name string
	Role string
}

const (
	ParticipantIndividual  = "individual"
	ParticipantLegalEntity = "legal_entity"
)

// CaseLinks is the full participant and tag set written with a case.
type CaseLinks struct {
	Participants []CaseParticipant
	TagIDs       []string
}

// CaseDetail is a case with everything the detail page shows.
type CaseDetail struct {
	LegalCase
	Participants []CaseParticipant
	Tags         []Tag
}

type CaseFilter struct {
	Search     string
	CaseTypeID string
	StatusID   string
	TagID      string
	Limit      int
	Offset     int
}

type Deadline struct {
	ID          string
	CaseID      string
	CaseCode    string
	Title       string
	Description string
	DueAt       time.Time
	CompletedAt *time.Time
	RemindedAt  *time.Time
	CreatedBy   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// DeadlineReminder is a deadline joined with the case owner to notify.
type DeadlineReminder struct {
	Deadline
	OwnerName  string
	OwnerEmail string
}

type Media struct {
	ID          string
	CaseID      string
	FileName    string
	ContentType string
	SizeBytes   int64
	Bucket      string
	ObjectKey   string
	UploadedBy  string
	CreatedAt   time.Time
	Tags        []Tag
}

type TodoList struct {
	ID        string
	OwnerID   string
	Title     string
	CreatedAt time.Time
	UpdatedAt time.Time
	Todos     []Todo
}

type Todo struct {
	ID        string
	ListID    string
	Title     string
	Done      bool
	Position  int
	CreatedAt time.Time
	UpdatedAt time.Time
}

type DashboardCounts struct {
	Cases             int
	OpenCases         int
	Individuals       int
	LegalEntities     int
	UpcomingDeadlines int
	OverdueDeadlines  int
}

// Bucket is one bar of a dashboard chart.
type Bucket struct {
	Label string
	Count int
}
