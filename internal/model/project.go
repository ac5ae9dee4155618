package model

import "time"

// PhaseStatus represents the persisted state of one analysis phase.
// The empty string means the phase has never been attempted.
type PhaseStatus string

const (
	PhaseAbsent     PhaseStatus = ""
	PhaseProcessing PhaseStatus = "processing"
	PhaseCompleted  PhaseStatus = "completed"
	PhaseFailed     PhaseStatus = "failed"
)

// ContentStatus reflects the health of a project's source content.
type ContentStatus string

const (
	ContentUnknown    ContentStatus = ""
	ContentOK         ContentStatus = "ok"
	ContentFetchError ContentStatus = "fetch_error"
	ContentBlocked    ContentStatus = "blocked"
	ContentDead       ContentStatus = "dead"
)

// Tier is the discrete quality verdict assigned to a project.
type Tier string

const (
	TierAlpha Tier = "ALPHA"
	TierSolid Tier = "SOLID"
	TierBasic Tier = "BASIC"
	TierTrash Tier = "TRASH"
)

// Band is the closed score range reserved for a tier. Bands are disjoint
// and ordered so a score alone identifies its tier.
type Band struct {
	Min float64 `yaml:"min" json:"min"`
	Max float64 `yaml:"max" json:"max"`
}

// Contains reports whether score falls inside the band (inclusive).
func (b Band) Contains(score float64) bool {
	return score >= b.Min && score <= b.Max
}

// Clamp forces score into the band.
func (b Band) Clamp(score float64) float64 {
	if score < b.Min {
		return b.Min
	}
	if score > b.Max {
		return b.Max
	}
	return score
}

// TierBands maps each tier to its reserved score band.
var TierBands = map[Tier]Band{
	TierAlpha: {Min: 90, Max: 100},
	TierSolid: {Min: 70, Max: 89},
	TierBasic: {Min: 40, Max: 69},
	TierTrash: {Min: 0, Max: 39},
}

// TierRank returns the ordinal rank of a tier, 1 = best. Unknown tiers
// rank below TRASH.
func TierRank(t Tier) int {
	switch t {
	case TierAlpha:
		return 1
	case TierSolid:
		return 2
	case TierBasic:
		return 3
	case TierTrash:
		return 4
	default:
		return 5
	}
}

// ProjectRecord is the persisted view of one crypto-asset project. The
// pipeline reads and writes only the named fields below; everything else
// about a project is owned by the ingestion side.
type ProjectRecord struct {
	ID            string `json:"id"`
	Symbol        string `json:"symbol"`
	Name          string `json:"name"`
	WebsiteURL    string `json:"website_url"`
	WhitepaperURL string `json:"whitepaper_url,omitempty"`

	// RawContent is the fetched text Phase 1 operates on.
	RawContent string `json:"raw_content,omitempty"`

	ExtractionStatus PhaseStatus   `json:"extraction_status"`
	ComparisonStatus PhaseStatus   `json:"comparison_status"`
	ContentStatus    ContentStatus `json:"content_status"`

	// Extraction holds Phase 1 output, consumed by Phase 2.
	Extraction *Extraction `json:"extraction,omitempty"`

	Tier      Tier     `json:"tier,omitempty"`
	Score     *float64 `json:"score,omitempty"`
	Reasoning string   `json:"reasoning,omitempty"`

	ExtractionError string `json:"extraction_error,omitempty"`
	ComparisonError string `json:"comparison_error,omitempty"`

	LastAnalyzedAt *time.Time `json:"last_analyzed_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// HasSource reports whether any content source has been discovered.
func (p *ProjectRecord) HasSource() bool {
	return p.WebsiteURL != "" || p.WhitepaperURL != ""
}

// SourceURL returns the preferred content source: the website when present,
// otherwise the whitepaper.
func (p *ProjectRecord) SourceURL() string {
	if p.WebsiteURL != "" {
		return p.WebsiteURL
	}
	return p.WhitepaperURL
}

// AnalysisResult is the verdict produced by the benchmark classifier.
type AnalysisResult struct {
	Tier      Tier    `json:"tier"`
	Score     float64 `json:"score"`
	Reasoning string  `json:"reasoning"`
}
