package sources

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/policyedge/backend/internal/classify"
	"github.com/policyedge/backend/internal/models"
	"github.com/policyedge/backend/pkg/circuitbreaker"
	"github.com/policyedge/backend/pkg/config"
	"github.com/policyedge/backend/pkg/retry"
)

// FeedSource polls one syndication endpoint. Both RSS 2.0 and Atom payloads
// are accepted.
type FeedSource struct {
	cfg        config.SourceConfig
	classifier *classify.Classifier
	confidence float64
	httpClient *http.Client
	breaker    *circuitbreaker.CircuitBreaker
	retryCfg   retry.Config
	logger     *zap.Logger
}

func NewFeedSource(cfg config.SourceConfig, classifier *classify.Classifier, confidence float64, logger *zap.Logger) *FeedSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	retryCfg := retry.DefaultConfig()
	retryCfg.Logger = logger

	return &FeedSource{
		cfg:        cfg,
		classifier: classifier,
		confidence: confidence,
		httpClient: &http.Client{Timeout: timeout},
		breaker: circuitbreaker.New(cfg.Name, circuitbreaker.Config{
			Logger: logger,
		}),
		retryCfg: retryCfg,
		logger:   logger,
	}
}

func (s *FeedSource) Name() string  { return s.cfg.Name }
func (s *FeedSource) Enabled() bool { return s.cfg.Enabled }

func (s *FeedSource) Fetch(ctx context.Context) ([]RawRecord, error) {
	var records []RawRecord

	err := s.breaker.Execute(ctx, func() error {
		return retry.Do(ctx, s.retryCfg, func() error {
			fetched, err := s.fetchOnce(ctx)
			if err != nil {
				return err
			}
			records = fetched
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("fetch feed %s: %w", s.cfg.Name, err)
	}

	return records, nil
}

func (s *FeedSource) fetchOnce(ctx context.Context) ([]RawRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.Endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "PolicyEdge-Intelligence/1.0")
	for key, value := range s.cfg.Headers {
		req.Header.Set(key, value)
	}
	if s.cfg.AuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+s.cfg.AuthToken)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", s.cfg.Endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed %s returned status %d", s.cfg.Name, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	records, err := decodeFeed(body)
	if err != nil {
		return nil, fmt.Errorf("decode feed %s: %w", s.cfg.Name, err)
	}

	s.logger.Debug("Feed fetched",
		zap.String("source", s.cfg.Name),
		zap.Int("entries", len(records)),
	)
	return records, nil
}

// Parse turns one feed entry into an item. Entries missing a title or body
// are skipped.
func (s *FeedSource) Parse(raw RawRecord) (*models.IntelligenceItem, error) {
	if raw.Title == "" || raw.Content == "" {
		return nil, fmt.Errorf("entry from %s missing title or content", s.cfg.Name)
	}

	published := raw.Published
	if published.IsZero() {
		published = time.Now().UTC()
	}

	text := raw.Title + " " + raw.Content

	return &models.IntelligenceItem{
		ID:              itemID("rss", raw.Link, published),
		Title:           raw.Title,
		Content:         raw.Content,
		Summary:         summarize(raw.Content),
		Source:          models.SourceRSSFeeds,
		Category:        classify.Categorize(text),
		ConfidenceScore: s.confidence,
		ImpactScore:     s.classifier.ImpactScore(raw.Title, raw.Content),
		UrgencyScore:    s.classifier.UrgencyScore(raw.Title, raw.Content, published),
		RiskScore:       s.classifier.RiskScore(raw.Title, raw.Content),
		Timestamp:       published,
		Tags:            s.classifier.ExtractTags(raw.Title, raw.Content),
		SourceURL:       raw.Link,
		Metadata: map[string]interface{}{
			"feed_name": s.cfg.Name,
			"author":    raw.Author,
		},
	}, nil
}

type rssFeed struct {
	XMLName xml.Name `xml:"rss"`
	Channel struct {
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
}

type rssItem struct {
	Title       string `xml:"title"`
	Description string `xml:"description"`
	Link        string `xml:"link"`
	Author      string `xml:"author"`
	PubDate     string `xml:"pubDate"`
}

type atomFeed struct {
	XMLName xml.Name    `xml:"feed"`
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	Title   string `xml:"title"`
	Summary string `xml:"summary"`
	Content string `xml:"content"`
	Links   []struct {
		Href string `xml:"href,attr"`
		Rel  string `xml:"rel,attr"`
	} `xml:"link"`
	Author struct {
		Name string `xml:"name"`
	} `xml:"author"`
	Updated   string `xml:"updated"`
	Published string `xml:"published"`
}

func decodeFeed(body []byte) ([]RawRecord, error) {
	// The XMLName fields pin the root element, so a successful RSS unmarshal
	// means the payload really was RSS; an empty channel is a healthy feed
	// with nothing new, not a parse failure.
	var rss rssFeed
	if err := xml.Unmarshal(body, &rss); err == nil {
		records := make([]RawRecord, 0, len(rss.Channel.Items))
		for _, item := range rss.Channel.Items {
			records = append(records, RawRecord{
				Title:     item.Title,
				Content:   item.Description,
				Link:      item.Link,
				Author:    item.Author,
				Published: parseFeedTime(item.PubDate),
			})
		}
		return records, nil
	}

	var atom atomFeed
	if err := xml.Unmarshal(body, &atom); err != nil {
		return nil, fmt.Errorf("neither RSS nor Atom: %w", err)
	}

	records := make([]RawRecord, 0, len(atom.Entries))
	for _, entry := range atom.Entries {
		content := entry.Content
		if content == "" {
			content = entry.Summary
		}
		published := entry.Published
		if published == "" {
			published = entry.Updated
		}

		var link string
		for _, l := range entry.Links {
			if l.Rel == "" || l.Rel == "alternate" {
				link = l.Href
				break
			}
		}

		records = append(records, RawRecord{
			Title:     entry.Title,
			Content:   content,
			Link:      link,
			Author:    entry.Author.Name,
			Published: parseFeedTime(published),
		})
	}
	return records, nil
}

var feedTimeLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	time.RFC3339,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"2006-01-02T15:04:05Z",
}

func parseFeedTime(value string) time.Time {
	for _, layout := range feedTimeLayouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts
		}
	}
	return time.Time{}
}
