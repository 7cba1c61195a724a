package search

import "context"

// ResultType identifies the kind of entity in a search result.
type ResultType string

const (
	ResultCase        ResultType = "case"
	ResultIndividual  ResultType = "individual"
	ResultLegalEntity ResultType = "legal_entity"
)

// ParseResultType accepts the public filter names. Empty means all types.
func ParseResultType(raw string) (ResultType, bool) {
	switch ResultType(raw) {
	case "":
		return "", true
	case ResultCase, ResultIndividual, ResultLegalEntity:
		return ResultType(raw), true
	default:
		return "", false
	}
}

// Result is a single search hit returned to the caller.
type Result struct {
	Type    ResultType `json:"type"`
	ID      string     `json:"id"`
	Title   string     `json:"title"`
	Snippet string     `json:"snippet"`
}

// Query describes a search request.
type Query struct {
	Text       string
	FilterType ResultType // empty = all types
	Limit      int
	Offset     int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
	Engine  string   `json:"engine"`
}

// Backend can execute a full-text search.
type Backend interface {
	Search(ctx context.Context, q Query) ([]Result, int, error)
	Healthy() bool
	Name() string
}

// Indexer can push entities into a search index.
type Indexer interface {
	Backend
	IndexCases(records []CaseRecord) error
	IndexIndividuals(records []IndividualRecord) error
	IndexLegalEntities(records []LegalEntityRecord) error
	Delete(kind ResultType, id string) error
	// Clear drops every document so a full reindex leaves no stale entries.
	Clear() error
}

// recoveryNotifier is implemented by indexes that can report coming back
// after an outage.
type recoveryNotifier interface {
	OnRecover(fn func())
}

// CaseRecord is the data we index for a legal case.
type CaseRecord struct {
	ID          string `json:"id"`
	Code        string `json:"code"`
	Title       string `json:"title"`
	Description string `json:"description"`
	CaseTypeID  string `json:"caseTypeId"`
	CaseType    string `json:"caseType"`
	Status      string `json:"status"`
}

// IndividualRecord is the data we index for a person.
type IndividualRecord struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Notes string `json:"notes"`
}

// LegalEntityRecord is the data we index for an organization.
type LegalEntityRecord struct {
	ID                 string `json:"id"`
	Name               string `json:"name"`
	RegistrationNumber string `json:"registrationNumber"`
	Description        string `json:"description"`
}
