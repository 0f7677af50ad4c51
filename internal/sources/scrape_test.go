package sources

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/policyedge/backend/internal/models"
	"github.com/policyedge/backend/pkg/config"
)

const scrapePayload = `<!DOCTYPE html>
<html>
<head>
  <title>Policy briefing page</title>
  <script>console.log("tracking")</script>
  <style>body { color: red }</style>
</head>
<body>
  <nav>Home | About</nav>
  <h1>Ignored, title tag wins</h1>
  <p>First paragraph   with    excess whitespace.</p>
  <p>Second paragraph of useful text.</p>
  <footer>copyright</footer>
</body>
</html>`

func testScrapeSource(t *testing.T, endpoint string) *ScrapeSource {
	t.Helper()
	return NewScrapeSource(config.SourceConfig{
		Name:     "test-page",
		Type:     "scrape",
		Endpoint: endpoint,
		Enabled:  true,
		Timeout:  5 * time.Second,
	}, 0.6, nil)
}

func TestScrapeSourceFetch(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(scrapePayload))
	}))
	defer srv.Close()

	source := testScrapeSource(t, srv.URL)

	records, err := source.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}

	record := records[0]
	if record.Title != "Policy briefing page" {
		t.Errorf("title = %q", record.Title)
	}
	for _, stripped := range []string{"console.log", "color: red", "Home | About", "copyright"} {
		if strings.Contains(record.Content, stripped) {
			t.Errorf("content still contains stripped text %q", stripped)
		}
	}
	if !strings.Contains(record.Content, "First paragraph with excess whitespace.") {
		t.Errorf("whitespace not collapsed: %q", record.Content)
	}
}

func TestScrapeSourceParse(t *testing.T) {
	t.Parallel()

	source := testScrapeSource(t, "https://example.com/page")

	item, err := source.Parse(RawRecord{
		Title:     "Some page",
		Content:   "cleaned page text",
		Link:      "https://example.com/page",
		Published: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if item.Source != models.SourceWebScraping {
		t.Errorf("source = %q, want %q", item.Source, models.SourceWebScraping)
	}
	if item.Category != models.CategoryPolicyShift {
		t.Errorf("category = %q, want %q", item.Category, models.CategoryPolicyShift)
	}
	if item.ImpactScore != 5.0 || item.UrgencyScore != 3.0 || item.RiskScore != 3.0 {
		t.Errorf("fixed scores wrong: %v/%v/%v", item.ImpactScore, item.UrgencyScore, item.RiskScore)
	}
	if item.ConfidenceScore != 0.6 {
		t.Errorf("confidence = %v, want 0.6", item.ConfidenceScore)
	}

	if _, err := source.Parse(RawRecord{Title: "empty"}); err == nil {
		t.Fatal("expected error for record without content")
	}
}

func TestScrapeSourceContentCap(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><head><title>big</title></head><body>" + strings.Repeat("word ", 2000) + "</body></html>"))
	}))
	defer srv.Close()

	source := testScrapeSource(t, srv.URL)

	records, err := source.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(records[0].Content) > scrapeContentLength {
		t.Fatalf("content length %d exceeds cap %d", len(records[0].Content), scrapeContentLength)
	}
}
