// Package notion pulls candidate projects from the analyst intake queue, a
// shared Notion database, into the analysis store. Analysts drop rows with
// Status "Queued"; the import command drains them and flips each to
// "Imported" so reruns skip it.
package notion

import (
	"context"
	"strings"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// ProjectSeed is one queued row from the intake database, ready to become a
// project record.
type ProjectSeed struct {
	PageID        string
	Symbol        string
	Name          string
	WebsiteURL    string
	WhitepaperURL string
}

// queueAPI is the slice of the Notion API the queue touches, narrowed so
// tests can fake it.
type queueAPI interface {
	queryDatabase(ctx context.Context, dbID string, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error)
	updatePage(ctx context.Context, pageID string, req *notionapi.PageUpdateRequest) (*notionapi.Page, error)
}

// Queue reads and updates the intake database. All calls share one rate
// limiter pinned to Notion's documented 3 req/s.
type Queue struct {
	api     queueAPI
	db      string
	limiter *rate.Limiter
}

// QueueOption configures a Queue.
type QueueOption func(*Queue)

// WithRateLimit overrides the default request rate. Zero or negative
// disables throttling.
func WithRateLimit(rps float64) QueueOption {
	return func(q *Queue) {
		if rps > 0 {
			q.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
		} else {
			q.limiter = nil
		}
	}
}

// NewQueue opens the intake queue in the given Notion database.
func NewQueue(token, databaseID string, opts ...QueueOption) *Queue {
	q := &Queue{
		api:     &sdkAPI{inner: notionapi.NewClient(notionapi.Token(token))},
		db:      databaseID,
		limiter: rate.NewLimiter(3, 1),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Pending returns every row with Status "Queued", following pagination.
// Rows without a usable symbol are dropped.
func (q *Queue) Pending(ctx context.Context) ([]ProjectSeed, error) {
	req := &notionapi.DatabaseQueryRequest{
		Filter: notionapi.PropertyFilter{
			Property: "Status",
			Status:   &notionapi.StatusFilterCondition{Equals: "Queued"},
		},
	}

	var seeds []ProjectSeed
	for {
		if err := q.wait(ctx); err != nil {
			return nil, err
		}
		resp, err := q.api.queryDatabase(ctx, q.db, req)
		if err != nil {
			return nil, eris.Wrapf(err, "notion: query queue %s", q.db)
		}
		for _, page := range resp.Results {
			seed := seedFromPage(page)
			if seed.Symbol == "" {
				continue
			}
			seeds = append(seeds, seed)
		}
		if !resp.HasMore {
			return seeds, nil
		}
		req.StartCursor = resp.NextCursor
	}
}

// MarkImported flips a queue row's Status to "Imported".
func (q *Queue) MarkImported(ctx context.Context, pageID string) error {
	if err := q.wait(ctx); err != nil {
		return err
	}
	_, err := q.api.updatePage(ctx, pageID, &notionapi.PageUpdateRequest{
		Properties: notionapi.Properties{
			"Status": notionapi.StatusProperty{
				Status: notionapi.Option{Name: "Imported"},
			},
		},
	})
	return eris.Wrapf(err, "notion: mark page %s imported", pageID)
}

func (q *Queue) wait(ctx context.Context) error {
	if q.limiter == nil {
		return nil
	}
	return eris.Wrap(q.limiter.Wait(ctx), "notion: rate limit")
}

// sdkAPI adapts the notionapi client's split Database/Page services to the
// queue's seam.
type sdkAPI struct {
	inner *notionapi.Client
}

func (s *sdkAPI) queryDatabase(ctx context.Context, dbID string, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
	return s.inner.Database.Query(ctx, notionapi.DatabaseID(dbID), req)
}

func (s *sdkAPI) updatePage(ctx context.Context, pageID string, req *notionapi.PageUpdateRequest) (*notionapi.Page, error) {
	return s.inner.Page.Update(ctx, notionapi.PageID(pageID), req)
}

// seedFromPage maps intake database properties to a seed. The database uses
// Symbol (title), Name, Website, and Whitepaper columns.
func seedFromPage(page notionapi.Page) ProjectSeed {
	seed := ProjectSeed{PageID: string(page.ID)}

	if prop, ok := page.Properties["Symbol"].(*notionapi.TitleProperty); ok {
		seed.Symbol = strings.ToLower(strings.TrimSpace(richTextPlain(prop.Title)))
	}
	if prop, ok := page.Properties["Name"].(*notionapi.RichTextProperty); ok {
		seed.Name = strings.TrimSpace(richTextPlain(prop.RichText))
	}
	if prop, ok := page.Properties["Website"].(*notionapi.URLProperty); ok {
		seed.WebsiteURL = strings.TrimSpace(prop.URL)
	}
	if prop, ok := page.Properties["Whitepaper"].(*notionapi.URLProperty); ok {
		seed.WhitepaperURL = strings.TrimSpace(prop.URL)
	}
	return seed
}

func richTextPlain(rts []notionapi.RichText) string {
	var sb strings.Builder
	for _, rt := range rts {
		sb.WriteString(rt.PlainText)
	}
	return sb.String()
}
