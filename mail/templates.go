package mail

import (
	"bytes"
	"embed"
	"fmt"
	"io"
	"path"

	"github.com/flosch/pongo2/v6"
)

//go:embed templates/*.html
var templateFS embed.FS

// Kind names one of the emails the package can render.
type Kind string

const (
	KindVerification    Kind = "verification"
	KindPasswordReset   Kind = "password_reset"
	KindPasswordChanged Kind = "password_changed"
)

type layout struct {
	file    string
	subject string
	heading string
	accent  string
}

var layouts = map[Kind]layout{
	KindVerification: {
		file:    "verification.html",
		subject: "Verify Your Email Address",
		heading: "Welcome to %s!",
		accent:  "#4F46E5",
	},
	KindPasswordReset: {
		file:    "password_reset.html",
		subject: "Reset Your Password",
		heading: "Password Reset Request",
		accent:  "#EF4444",
	},
	KindPasswordChanged: {
		file:    "password_changed.html",
		subject: "Your Password Has Been Changed",
		heading: "Password Changed Successfully",
		accent:  "#10B981",
	},
}

// embedLoader serves templates from templateFS to pongo2.
type embedLoader struct{}

func (embedLoader) Abs(base, name string) string {
	if base == "" || path.IsAbs(name) {
		return path.Clean(name)
	}
	return path.Join(path.Dir(base), name)
}

func (embedLoader) Get(name string) (io.Reader, error) {
	b, err := templateFS.ReadFile(path.Join("templates", name))
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(b), nil
}

// Templates renders the embedded email templates. Values are HTML-escaped by
// pongo2 before they reach the page.
type Templates struct {
	product string
	set     *pongo2.TemplateSet
	parsed  map[Kind]*pongo2.Template
}

// Data is what a template may reference besides the fixed layout values.
type Data struct {
	Name    string
	Link    string
	Expires string
}

// NewTemplates parses every template once. product appears in headings.
func NewTemplates(product string) (*Templates, error) {
	if product == "" {
		product = "Backend Masterclass"
	}
	t := &Templates{
		product: product,
		set:     pongo2.NewSet("mail", embedLoader{}),
		parsed:  make(map[Kind]*pongo2.Template, len(layouts)),
	}
	for kind, l := range layouts {
		tpl, err := t.set.FromFile(l.file)
		if err != nil {
			return nil, fmt.Errorf("mail: parse %s: %w", l.file, err)
		}
		t.parsed[kind] = tpl
	}
	return t, nil
}

// Render returns the subject and HTML body for kind.
func (t *Templates) Render(kind Kind, data Data) (subject, html string, err error) {
	l, ok := layouts[kind]
	tpl := t.parsed[kind]
	if !ok || tpl == nil {
		return "", "", fmt.Errorf("mail: unknown template %q", kind)
	}

	heading := l.heading
	if kind == KindVerification {
		heading = fmt.Sprintf(l.heading, t.product)
	}
	html, err = tpl.Execute(pongo2.Context{
		"title":   l.subject,
		"heading": heading,
		"accent":  l.accent,
		"product": t.product,
		"name":    data.Name,
		"link":    data.Link,
		"expires": data.Expires,
	})
	if err != nil {
		return "", "", fmt.Errorf("mail: render %s: %w", l.file, err)
	}
	return l.subject, html, nil
}
