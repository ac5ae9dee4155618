package extract

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/coinassay/coinassay/internal/model"
)

// rigorWindow is the number of characters inspected on each side of a
// technical match when looking for rigor markers.
const rigorWindow = 240

// evidenceWindow bounds the evidence snippet attached to each signal.
const evidenceWindow = 120

// Extractor evaluates one detector table against raw text. Instantiate one
// per content type (website, whitepaper, social) rather than duplicating
// evaluation logic.
type Extractor struct {
	table Table
}

// New creates an Extractor over the given detector table.
func New(table Table) *Extractor {
	return &Extractor{table: table}
}

// Extract scans text and returns all signals and metrics the table yields.
// It performs no I/O and is safe for concurrent use.
func (e *Extractor) Extract(text string) model.Extraction {
	out := model.Extraction{
		Signals: []model.Signal{},
		Metrics: []model.Metric{},
	}

	normalized := normalize(text)
	lines := nonEmptyLines(normalized)

	for _, d := range e.table {
		switch d.Kind {
		case KindPattern:
			out.Signals = append(out.Signals, evalPattern(d, normalized)...)
		case KindDensity:
			out.Metrics = append(out.Metrics, model.Metric{
				Name:  d.Metric,
				Value: evalDensity(d, lines),
			})
		}
	}

	return out
}

// normalize applies NFKC so typographic variants (fullwidth characters,
// ligatures, styled unicode often used in crypto marketing) match plain
// ASCII patterns.
func normalize(text string) string {
	return norm.NFKC.String(text)
}

func nonEmptyLines(text string) []string {
	var lines []string
	for _, l := range strings.Split(text, "\n") {
		if strings.TrimSpace(l) != "" {
			lines = append(lines, l)
		}
	}
	return lines
}

// evalPattern emits one signal per match. Technical matches get a rigor
// check in the surrounding context window: formal notation nearby upgrades
// the signal to strong evidence instead of producing a second signal.
func evalPattern(d Detector, text string) []model.Signal {
	idxs := d.Pattern.FindAllStringIndex(text, -1)
	if len(idxs) == 0 {
		return nil
	}

	signals := make([]model.Signal, 0, len(idxs))
	for _, loc := range idxs {
		sig := model.Signal{
			Description: d.Description,
			Category:    d.Category,
			Strength:    d.Strength,
			Evidence:    snippet(text, loc[0], loc[1], evidenceWindow),
		}
		if d.Category == model.CategoryTechnical && hasRigorContext(text, loc[0], loc[1]) {
			sig.Strength = model.StrengthStrong
		}
		signals = append(signals, sig)
	}
	return signals
}

// evalDensity returns matching lines / total lines * 100. Empty input is a
// valid text with density 0, never a division error.
func evalDensity(d Detector, lines []string) float64 {
	if len(lines) == 0 {
		return 0
	}
	matching := 0
	for _, l := range lines {
		if d.Pattern.MatchString(l) {
			matching++
		}
	}
	return float64(matching) / float64(len(lines)) * 100
}

func hasRigorContext(text string, start, end int) bool {
	lo := start - rigorWindow
	if lo < 0 {
		lo = 0
	}
	hi := end + rigorWindow
	if hi > len(text) {
		hi = len(text)
	}
	return rigorMarkers.MatchString(text[lo:hi])
}

// snippet returns the match plus trailing context, trimmed and bounded.
func snippet(text string, start, end, width int) string {
	hi := end + width
	if hi > len(text) {
		hi = len(text)
	}
	for hi > start && hi < len(text) && !utf8.RuneStart(text[hi]) {
		hi--
	}
	s := text[start:hi]
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
