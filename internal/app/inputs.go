package app

// Request bodies. Field names in validation details are the json names.

type CaseTypeInput struct {
	Name        string `json:"name" validate:"notblank,max=120"`
	Description string `json:"description" validate:"max=2000"`
}

type StatusInput struct {
	Name        string `json:"name" validate:"notblank,max=120"`
	Description string `json:"description" validate:"max=2000"`
	Color       string `json:"color" validate:"omitempty,rgbhex"`
	IsClosed    bool   `json:"isClosed"`
	SortOrder   int    `json:"sortOrder" validate:"min=0"`
}

type TagInput struct {
	Name        string `json:"name" validate:"notblank,max=80"`
	Description string `json:"description" validate:"max=2000"`
	Color       string `json:"color" validate:"omitempty,rgbhex"`
}

type IndividualInput struct {
	FirstName  string `json:"firstName" validate:"notblank,max=120"`
	LastName   string `json:"lastName" validate:"notblank,max=120"`
	Email      string `json:"email" validate:"omitempty,email,max=254"`
	Phone      string `json:"phone" validate:"max=40"`
	Address    string `json:"address" validate:"max=500"`
	NationalID string `json:"nationalId" validate:"max=40"`
	BirthDate  string `json:"birthDate" validate:"omitempty,datetime=2006-01-02"`
	Notes      string `json:"notes" validate:"max=5000"`
}

type LegalEntityInput struct {
	Name               string `json:"name" validate:"notblank,max=200"`
	RegistrationNumber string `json:"registrationNumber" validate:"max=60"`
	TaxID              string `json:"taxId" validate:"max=60"`
	Email              string `json:"email" validate:"omitempty,email,max=254"`
	Phone              string `json:"phone" validate:"max=40"`
	Address            string `json:"address" validate:"max=500"`
	Description        string `json:"description" validate:"max=5000"`
}

type ParticipantInput struct {
	Kind string `json:"kind" validate:"required,oneof=individual legal_entity"`
	ID   string `json:"id" validate:"notblank"`
	Role string `json:"role" validate:"max=100"`
}

type CaseInput struct {
	Code         string             `json:"code" validate:"notblank,max=50"`
	Title        string             `json:"title" validate:"max=200"`
	Description  string             `json:"description" validate:"max=10000"`
	EntryDate    string             `json:"entryDate" validate:"required,datetime=2006-01-02"`
	CaseTypeID   string             `json:"caseTypeId" validate:"notblank"`
	StatusID     string             `json:"statusId"`
	Participants []ParticipantInput `json:"participants" validate:"dive"`
	TagIDs       []string           `json:"tagIds"`
}

type DeadlineInput struct {
	Title       string `json:"title" validate:"notblank,max=200"`
	Description string `json:"description" validate:"max=5000"`
	DueAt       string `json:"dueAt" validate:"notblank"`
}

type TodoListInput struct {
	Title string `json:"title" validate:"notblank,max=200"`
}

type TodoInput struct {
	Title    string `json:"title" validate:"notblank,max=500"`
	Done     bool   `json:"done"`
	Position int    `json:"position" validate:"min=0"`
}

type TagIDsInput struct {
	TagIDs []string `json:"tagIds"`
}
