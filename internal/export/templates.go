package export

import (
	"bytes"
	"embed"
	"html/template"
	"strings"
)

//go:embed templates/*.html
var templateFS embed.FS

var dossierTemplate = template.Must(
	template.New("dossier.html").
		Funcs(template.FuncMap{"join": strings.Join}).
		ParseFS(templateFS, "templates/dossier.html"),
)

// TemplateData holds data for dossier template rendering. Dates are already
// formatted; empty strings render as blanks.
type TemplateData struct {
	Code         string
	Title        string
	Description  string
	EntryDate    string
	CaseType     string
	Status       string
	ClosedAt     string
	Owner        string
	GeneratedAt  string
	Participants []TemplateParticipant
	Tags         []string
	Deadlines    []TemplateDeadline
	Media        []TemplateMedia
}

type TemplateParticipant struct {
	Name string
	Kind string
	Role string
}

type TemplateDeadline struct {
	Title       string
	Description string
	DueAt       string
	State       string
}

type TemplateMedia struct {
	FileName string
	Size     string
	Uploaded string
	Tags     []string
}

// RenderDossierHTML renders the dossier template with provided data
func RenderDossierHTML(data TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := dossierTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
