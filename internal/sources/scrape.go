package sources

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/policyedge/backend/internal/models"
	"github.com/policyedge/backend/pkg/circuitbreaker"
	"github.com/policyedge/backend/pkg/config"
	"github.com/policyedge/backend/pkg/retry"
)

const scrapeContentLength = 1000

var whitespacePattern = regexp.MustCompile(`\s+`)

// ScrapeSource pulls a single page and treats its cleaned text as one record.
type ScrapeSource struct {
	cfg        config.SourceConfig
	confidence float64
	httpClient *http.Client
	breaker    *circuitbreaker.CircuitBreaker
	retryCfg   retry.Config
	logger     *zap.Logger
}

func NewScrapeSource(cfg config.SourceConfig, confidence float64, logger *zap.Logger) *ScrapeSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	retryCfg := retry.DefaultConfig()
	retryCfg.Logger = logger

	return &ScrapeSource{
		cfg:        cfg,
		confidence: confidence,
		httpClient: &http.Client{Timeout: timeout},
		breaker: circuitbreaker.New(cfg.Name, circuitbreaker.Config{
			Logger: logger,
		}),
		retryCfg: retryCfg,
		logger:   logger,
	}
}

func (s *ScrapeSource) Name() string  { return s.cfg.Name }
func (s *ScrapeSource) Enabled() bool { return s.cfg.Enabled }

func (s *ScrapeSource) Fetch(ctx context.Context) ([]RawRecord, error) {
	var record RawRecord

	err := s.breaker.Execute(ctx, func() error {
		return retry.Do(ctx, s.retryCfg, func() error {
			fetched, err := s.scrapeOnce(ctx)
			if err != nil {
				return err
			}
			record = fetched
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("scrape %s: %w", s.cfg.Name, err)
	}

	return []RawRecord{record}, nil
}

func (s *ScrapeSource) scrapeOnce(ctx context.Context) (RawRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.Endpoint, nil)
	if err != nil {
		return RawRecord{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")
	for key, value := range s.cfg.Headers {
		req.Header.Set(key, value)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return RawRecord{}, fmt.Errorf("get %s: %w", s.cfg.Endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return RawRecord{}, fmt.Errorf("page %s returned status %d", s.cfg.Name, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return RawRecord{}, fmt.Errorf("parse HTML: %w", err)
	}

	doc.Find("script, style, nav, footer, header, aside").Remove()

	title := strings.TrimSpace(doc.Find("title").First().Text())
	if title == "" {
		title = strings.TrimSpace(doc.Find("h1").First().Text())
	}
	if title == "" {
		title = s.cfg.Name
	}

	text := doc.Find("body").Text()
	text = whitespacePattern.ReplaceAllString(text, " ")
	text = strings.TrimSpace(text)
	if len(text) > scrapeContentLength {
		text = text[:scrapeContentLength]
	}

	s.logger.Debug("Page scraped",
		zap.String("source", s.cfg.Name),
		zap.Int("content_length", len(text)),
	)

	return RawRecord{
		Title:     title,
		Content:   text,
		Link:      s.cfg.Endpoint,
		Published: time.Now().UTC(),
	}, nil
}

// Parse wraps the scraped page as a policy-shift item with fixed mid-range
// scores; scraped pages carry no per-entry signal to grade on.
func (s *ScrapeSource) Parse(raw RawRecord) (*models.IntelligenceItem, error) {
	if raw.Content == "" {
		return nil, fmt.Errorf("page %s yielded no content", s.cfg.Name)
	}

	return &models.IntelligenceItem{
		ID:              itemID("web", raw.Link, raw.Published),
		Title:           raw.Title,
		Content:         raw.Content,
		Summary:         summarize(raw.Content),
		Source:          models.SourceWebScraping,
		Category:        models.CategoryPolicyShift,
		ConfidenceScore: s.confidence,
		ImpactScore:     5.0,
		UrgencyScore:    3.0,
		RiskScore:       3.0,
		Timestamp:       raw.Published,
		SourceURL:       raw.Link,
		Metadata: map[string]interface{}{
			"scraping_source": s.cfg.Name,
		},
	}, nil
}
