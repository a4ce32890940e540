package site

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

//go:embed content.yaml
var contentYAML []byte

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

type Feature struct {
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
	Icon        string `yaml:"icon"`
	Link        string `yaml:"link"`
}

type Tech struct {
	Key     string `yaml:"key"`
	Tab     string `yaml:"tab"`
	Title   string `yaml:"title"`
	Summary string `yaml:"summary"`
	Body    string `yaml:"body"`
	Image   string `yaml:"image"`
}

type Testimonial struct {
	Name    string `yaml:"name"`
	Role    string `yaml:"role"`
	Content string `yaml:"content"`
}

type Facility struct {
	Title    string `yaml:"title"`
	Body     string `yaml:"body"`
	Image    string `yaml:"image"`
	ImageAlt string `yaml:"image_alt"`
}

// Content is everything the landing page displays.
type Content struct {
	Brand   string `yaml:"brand"`
	Tagline string `yaml:"tagline"`
	Hero    struct {
		Title    string `yaml:"title"`
		Subtitle string `yaml:"subtitle"`
		CTA      string `yaml:"cta"`
		Image    string `yaml:"image"`
		ImageAlt string `yaml:"image_alt"`
	} `yaml:"hero"`
	Features []Feature `yaml:"features"`
	Why      struct {
		Title    string   `yaml:"title"`
		Image    string   `yaml:"image"`
		ImageAlt string   `yaml:"image_alt"`
		Points   []string `yaml:"points"`
	} `yaml:"why"`
	Technology   []Tech        `yaml:"technology"`
	Testimonials []Testimonial `yaml:"testimonials"`
	CTA          struct {
		Title  string `yaml:"title"`
		Body   string `yaml:"body"`
		Button string `yaml:"button"`
	} `yaml:"cta"`
	Facilities []Facility `yaml:"facilities"`
	Contact    struct {
		Address string `yaml:"address"`
		Phone   string `yaml:"phone"`
		Email   string `yaml:"email"`
	} `yaml:"contact"`
	Copyright string `yaml:"copyright"`
}

// LoadContent parses the embedded landing content.
func LoadContent() (*Content, error) {
	return parseContent(contentYAML)
}

func parseContent(raw []byte) (*Content, error) {
	var c Content
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("parse content: %w", err)
	}
	if c.Hero.Title == "" || len(c.Features) == 0 {
		return nil, fmt.Errorf("parse content: hero title and features are required")
	}
	return &c, nil
}

// Anchor turns a section title into the fragment id used by quick links.
func Anchor(title string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(title)), " ", "-")
}

// Site renders the landing page, the blood analysis page and static assets.
type Site struct {
	content *Content
	home    *template.Template
	analyze *template.Template
	static  http.Handler
}

func New() (*Site, error) {
	c, err := LoadContent()
	if err != nil {
		return nil, err
	}
	funcs := template.FuncMap{"anchor": Anchor}
	home, err := template.New("").Funcs(funcs).ParseFS(templateFS, "templates/layout.html", "templates/home.html")
	if err != nil {
		return nil, fmt.Errorf("parse home template: %w", err)
	}
	analyze, err := template.New("").Funcs(funcs).ParseFS(templateFS, "templates/layout.html", "templates/analyze.html")
	if err != nil {
		return nil, fmt.Errorf("parse analyze template: %w", err)
	}
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		return nil, err
	}
	return &Site{
		content: c,
		home:    home,
		analyze: analyze,
		static:  http.StripPrefix("/static/", http.FileServer(http.FS(sub))),
	}, nil
}

func (s *Site) Content() *Content { return s.content }

func (s *Site) Home(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, s.home, "Home")
}

func (s *Site) BloodAnalysis(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, s.analyze, "AI Blood Report Analysis")
}

// Static serves /static/* from the embedded assets.
func (s *Site) Static() http.Handler { return s.static }

type page struct {
	Title string
	*Content
}

func (s *Site) render(w http.ResponseWriter, r *http.Request, t *template.Template, title string) {
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", page{Title: title, Content: s.content}); err != nil {
		log.Ctx(r.Context()).Error().Err(err).Str("page", title).Msg("render failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}
