// Package sources implements the adapters that pull raw records from
// external endpoints and turn them into intelligence items. New source
// dialects plug in behind the Source interface; the collector never changes.
package sources

import (
	"context"
	"fmt"
	"time"

	"github.com/policyedge/backend/internal/models"
	"github.com/policyedge/backend/pkg/utils"
)

// RawRecord is one unparsed record from an upstream endpoint.
type RawRecord struct {
	Title     string
	Content   string
	Link      string
	Author    string
	Published time.Time
}

// Source fetches raw records from one endpoint and parses them into the
// canonical item shape. Fetch may fail as a whole; Parse may skip a single
// malformed record by returning (nil, error).
type Source interface {
	Name() string
	Enabled() bool
	Fetch(ctx context.Context) ([]RawRecord, error)
	Parse(raw RawRecord) (*models.IntelligenceItem, error)
}

const summaryLength = 200

func summarize(content string) string {
	if len(content) > summaryLength {
		return content[:summaryLength] + "..."
	}
	return content
}

func itemID(prefix, link string, ts time.Time) string {
	return fmt.Sprintf("%s_%s_%d", prefix, utils.HashString(link), ts.Unix())
}
