package news

import "time"

// RunStatus represents the lifecycle state of a crawl run.
type RunStatus string

// Run status values persisted in the ledger. A run is created running and
// receives exactly one terminal write (completed or failed).
const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// SourceConfig identifies one crawlable source and its cadence.
type SourceConfig struct {
	Name               string         `json:"name"`
	BaseURL            string         `json:"base_url"`
	Active             bool           `json:"active"`
	IntervalMinutes    int            `json:"interval_minutes"`
	Settings           map[string]any `json:"settings,omitempty"`
	LastCrawl          *time.Time     `json:"last_crawl,omitempty"`
	LastScheduledCrawl *time.Time     `json:"last_scheduled_crawl,omitempty"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
}

// Interval returns the crawl interval as a duration.
func (c SourceConfig) Interval() time.Duration {
	return time.Duration(c.IntervalMinutes) * time.Minute
}

// DueReference returns the timestamp due-ness is computed from: the last
// scheduler-triggered crawl when present, otherwise the last crawl of any
// kind. Manual runs advance LastCrawl only, so they never reset the schedule.
func (c SourceConfig) DueReference() *time.Time {
	if c.LastScheduledCrawl != nil {
		return c.LastScheduledCrawl
	}
	return c.LastCrawl
}

// CrawlRun is one ledger entry: a single attempt to crawl a source.
type CrawlRun struct {
	ID           string     `json:"id"`
	SourceName   string     `json:"source_name"`
	StartTime    time.Time  `json:"start_time"`
	EndTime      *time.Time `json:"end_time,omitempty"`
	Status       RunStatus  `json:"status"`
	ItemsFound   int        `json:"items_found"`
	ItemsSaved   int        `json:"items_saved"`
	ItemsSkipped int        `json:"items_skipped"`
	SavedIDs     []string   `json:"saved_ids,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
	DurationSecs float64    `json:"duration_seconds"`
}

// Article is one persisted crawled item, content-addressed by URLHash.
type Article struct {
	ID         string         `json:"id"`
	SourceName string         `json:"source_name"`
	SourceURL  string         `json:"source_url"`
	URLHash    string         `json:"url_hash"`
	Title      string         `json:"title"`
	Content    string         `json:"content"`
	Meta       map[string]any `json:"meta,omitempty"`
	CrawledAt  time.Time      `json:"crawled_at"`
	Processed  bool           `json:"processed"`
}

// ItemData is what a source adapter extracts for a single candidate.
type ItemData struct {
	Title string
	Body  string
	Meta  map[string]any
	// Raw optionally carries the unprocessed upstream payload for archival.
	Raw []byte
}

// ItemResult is one orchestrated fetch+parse outcome, tagged with the
// owning source and the content hash of its URL.
type ItemResult struct {
	SourceName string
	SourceURL  string
	URLHash    string
	Data       ItemData
}

// CommitStats summarizes one gate commit.
type CommitStats struct {
	Saved    int      `json:"saved"`
	Skipped  int      `json:"skipped"`
	SavedIDs []string `json:"saved_ids,omitempty"`
}

// CrawlRequest crosses the dispatch boundary: which source to crawl and
// whether the periodic scheduler initiated it.
type CrawlRequest struct {
	SourceName string
	BaseURL    string
	Scheduled  bool
}

// WorkItem is one queued unit of crawl work: the open ledger entry and the
// request that produced it.
type WorkItem struct {
	Run     CrawlRun
	Request CrawlRequest
}

// TickSummary reports what one scheduler tick did.
type TickSummary struct {
	Checked   int `json:"sources_checked"`
	Triggered int `json:"sources_triggered"`
}

// RunFilter narrows ledger queries for the API.
type RunFilter struct {
	SourceName string
	Status     RunStatus
	Limit      int
	Offset     int
}

// ArticleFilter narrows article queries for the API.
type ArticleFilter struct {
	SourceName string
	Limit      int
	Offset     int
}

// SourceStats aggregates article counts for one source (or all sources).
type SourceStats struct {
	SourceName  string `json:"source_name"`
	Total       int    `json:"total_articles"`
	Processed   int    `json:"processed_articles"`
	Unprocessed int    `json:"unprocessed_articles"`
}
