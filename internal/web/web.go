// Package web embeds the dashboard templates and static assets.
package web

import (
	"embed"
	"html/template"
	"io/fs"
	"time"

	"github.com/psds-microservice/supportbot/internal/model"
)

//go:embed templates/*.html
var templatesFS embed.FS

//go:embed static
var staticFS embed.FS

var statusLabels = map[model.TicketStatus]string{
	model.TicketStatusOpen:       "Открыт",
	model.TicketStatusInProgress: "В работе",
	model.TicketStatusResolved:   "Решен",
}

var categoryLabels = map[model.TicketCategory]string{
	model.CategoryManagerRequest:  "Обращение к менеджеру",
	model.CategoryViolationReport: "Отчет о нарушении",
}

// Statuses lists the statuses in the order the dashboard shows them.
var Statuses = []model.TicketStatus{
	model.TicketStatusOpen,
	model.TicketStatusInProgress,
	model.TicketStatusResolved,
}

var funcs = template.FuncMap{
	"statusLabel": func(s model.TicketStatus) string {
		if l, ok := statusLabels[s]; ok {
			return l
		}
		return string(s)
	},
	"categoryLabel": func(c model.TicketCategory) string {
		if l, ok := categoryLabels[c]; ok {
			return l
		}
		return string(c)
	},
	"fmtTime": func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.Local().Format("02.01.2006 15:04")
	},
	"fmtTimePtr": func(t *time.Time) string {
		if t == nil {
			return "—"
		}
		return t.Local().Format("02.01.2006 15:04")
	},
	"deref": func(s *string) string {
		if s == nil {
			return ""
		}
		return *s
	},
	"statuses": func() []model.TicketStatus { return Statuses },
}

// Templates parses every page template.
func Templates() (*template.Template, error) {
	return template.New("").Funcs(funcs).ParseFS(templatesFS, "templates/*.html")
}

// Static serves the stylesheet and other assets.
func Static() fs.FS {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return sub
}
