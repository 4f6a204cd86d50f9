package template

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"

	"github.com/ghaggin/pbdemo/internal/model"
)

//go:embed tmpl/*.html
var files embed.FS

const (
	templateDir string = "tmpl"
)

// Data is what every page template receives.
type Data struct {
	PageTitle string
	User      *model.User

	Error   string
	Message string
	// Fields holds per-field validation messages keyed by form field name.
	Fields map[string]string
	Form   map[string]string

	OTPID string

	Page  model.DemoPage
	Pages Pagination
}

type Pagination struct {
	Current int
	Total   int
	Prev    int
	Next    int
}

func NewPagination(current, total int) Pagination {
	p := Pagination{Current: current, Total: total}
	if current > 1 {
		p.Prev = current - 1
	}
	if current < total {
		p.Next = current + 1
	}
	return p
}

func RenderStatus(w http.ResponseWriter, r *http.Request, status int, tmpl string, td any) error {
	t, err := template.ParseFS(files,
		templateDir+"/"+tmpl,
		templateDir+"/"+"base.html",
	)
	if err != nil {
		return err
	}

	buf := &bytes.Buffer{}

	err = t.Execute(buf, td)
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err = buf.WriteTo(w)
	return err
}
