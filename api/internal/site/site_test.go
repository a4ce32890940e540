package site

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSite(t *testing.T) *Site {
	t.Helper()
	s, err := New()
	require.NoError(t, err)
	return s
}

func get(t *testing.T, h http.HandlerFunc, path string) (*httptest.ResponseRecorder, *goquery.Document) {
	t.Helper()
	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, path, nil))
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rec.Body.String()))
	require.NoError(t, err)
	return rec, doc
}

func TestLoadContent(t *testing.T) {
	c, err := LoadContent()
	require.NoError(t, err)
	assert.Equal(t, "The Future of Healthcare", c.Hero.Title)
	assert.Len(t, c.Features, 8)
	assert.Len(t, c.Why.Points, 6)
	assert.Len(t, c.Technology, 3)
	assert.Len(t, c.Testimonials, 3)
	assert.Len(t, c.Facilities, 3)
	assert.Equal(t, "info@healthtech.com", c.Contact.Email)
}

func TestParseContentRejectsEmpty(t *testing.T) {
	_, err := parseContent([]byte("brand: x\n"))
	assert.Error(t, err)

	_, err = parseContent([]byte("hero: [oops"))
	assert.Error(t, err)
}

func TestAnchor(t *testing.T) {
	assert.Equal(t, "ai-diagnostics", Anchor("AI Diagnostics"))
	assert.Equal(t, "personalized-medicine", Anchor(" Personalized Medicine "))
}

func TestHome(t *testing.T) {
	rec, doc := get(t, newSite(t).Home, "/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))

	assert.Equal(t, "The Future of Healthcare", strings.TrimSpace(doc.Find(".hero h1").Text()))
	assert.Equal(t, 8, doc.Find("article.feature").Length())
	assert.Equal(t, 3, doc.Find("details.tab").Length())
	_, open := doc.Find("details.tab").First().Attr("open")
	assert.True(t, open)
	assert.Equal(t, 3, doc.Find("blockquote.testimonial").Length())
	assert.Equal(t, 3, doc.Find("article.facility").Length())
	assert.Equal(t, "Ready to Take Control of Your Health?", strings.TrimSpace(doc.Find(".cta h2").Text()))
	assert.Equal(t, "© 2024 HealthTech. All rights reserved.", strings.TrimSpace(doc.Find(".copyright").Text()))

	// Pathology links to the analysis page, the rest to in-page anchors that exist.
	href, ok := doc.Find("#pathology h3 a").Attr("href")
	require.True(t, ok)
	assert.Equal(t, "/pathology/blood-analysis", href)
	doc.Find(".quick-links a").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		if frag, ok := strings.CutPrefix(href, "/#"); ok {
			assert.Equal(t, 1, doc.Find("#"+frag).Length(), href)
		}
	})
}

func TestBloodAnalysisPage(t *testing.T) {
	rec, doc := get(t, newSite(t).BloodAnalysis, "/pathology/blood-analysis")
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, "AI Blood Report Analysis", strings.TrimSpace(doc.Find("h1").Text()))
	assert.Equal(t, "Upload Blood Report Image", strings.TrimSpace(doc.Find("#uploader h2").Text()))
	assert.Equal(t, "Analyze Prescription", strings.TrimSpace(doc.Find("#analyze-button").Text()))

	endpoint, _ := doc.Find("#uploader").Attr("data-endpoint")
	assert.Equal(t, "/api/analyze-prescription", endpoint)
	accept, _ := doc.Find("#file-input").Attr("accept")
	assert.Equal(t, "image/*", accept)
	_, multiple := doc.Find("#file-input").Attr("multiple")
	assert.False(t, multiple)

	_, hidden := doc.Find("#error-box").Attr("hidden")
	assert.True(t, hidden)
	_, hidden = doc.Find("#result-box").Attr("hidden")
	assert.True(t, hidden)
	assert.Equal(t, 1, doc.Find(`script[src="/static/widget.js"]`).Length())
}

func TestStatic(t *testing.T) {
	srv := httptest.NewServer(newSite(t).Static())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/static/widget.js")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	js := string(body)
	assert.Contains(t, js, "No image selected. Please upload an image first.")
	assert.Contains(t, js, "An error occurred: ")
	assert.Contains(t, js, `form.append("image"`)

	resp2, err := http.Get(srv.URL + "/static/missing.css")
	require.NoError(t, err)
	resp2.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp2.StatusCode)
}
