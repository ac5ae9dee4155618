// Package extract turns raw project text into typed signals and density
// metrics. The engine is pure and deterministic: identical input text and
// detector table always produce identical output.
package extract

import (
	"regexp"

	"github.com/coinassay/coinassay/internal/model"
)

// DetectorKind selects how a detector is evaluated.
type DetectorKind string

const (
	// KindPattern scans the whole text and emits one signal per match.
	KindPattern DetectorKind = "pattern"
	// KindDensity counts matching lines against total lines and emits a
	// percentage metric.
	KindDensity DetectorKind = "density"
)

// Detector is one entry in a detector table. Tables are data: adding a
// detector never requires touching the evaluation engine.
type Detector struct {
	Name        string
	Kind        DetectorKind
	Pattern     *regexp.Regexp
	Category    model.SignalCategory // pattern detectors only
	Strength    model.SignalStrength // base strength before rigor upgrade
	Metric      string               // density detectors only
	Description string
}

// Table is an ordered detector list. Order matters only for output
// stability, not for semantics.
type Table []Detector

// rigorMarkers matches formal-notation and proof-like vocabulary near a
// technical match. Presence upgrades the signal's strength instead of
// emitting a second signal.
var rigorMarkers = regexp.MustCompile(`(?i)\b(theorem|lemma|proof|proposition|corollary|formally|q\.e\.d\.?|invariant|complexity|asymptotic|big-?o|peer.?review(ed)?)\b|[∀∃∑∏∈⊆≤≥≠⇒→λσθΣΠ]|O\([a-z0-9^ ]+\)`)

func pat(expr string) *regexp.Regexp { return regexp.MustCompile(`(?i)` + expr) }

// WebsiteTable returns the stock detector table for marketing-site text.
func WebsiteTable() Table {
	return Table{
		// Technical-innovation signals.
		{Name: "novel_consensus", Kind: KindPattern, Pattern: pat(`\b(novel|new|custom)\s+(consensus|byzantine|bft)\b`), Category: model.CategoryTechnical, Strength: model.StrengthWeak, Description: "claims a novel consensus mechanism"},
		{Name: "zero_knowledge", Kind: KindPattern, Pattern: pat(`\bzk[- ]?(snark|stark|rollup|proof)s?\b|\bzero[- ]knowledge\b`), Category: model.CategoryTechnical, Strength: model.StrengthModerate, Description: "uses zero-knowledge proof systems"},
		{Name: "formal_verification", Kind: KindPattern, Pattern: pat(`\bformal(ly)?\s+verif(y|ied|ication)\b`), Category: model.CategoryTechnical, Strength: model.StrengthModerate, Description: "claims formal verification"},
		{Name: "sharding_scaling", Kind: KindPattern, Pattern: pat(`\b(sharding|state channels?|optimistic rollups?|data availability sampling)\b`), Category: model.CategoryTechnical, Strength: model.StrengthWeak, Description: "describes a scaling architecture"},
		{Name: "cryptographic_primitive", Kind: KindPattern, Pattern: pat(`\b(bls signatures?|threshold (signature|encryption)|vrf|verifiable random function|homomorphic)\b`), Category: model.CategoryTechnical, Strength: model.StrengthModerate, Description: "names concrete cryptographic primitives"},

		// Positive indicators.
		{Name: "audit_report", Kind: KindPattern, Pattern: pat(`\baudit(ed)?\s+by\s+[a-z0-9][\w .-]{2,40}|\bsecurity audit\b`), Category: model.CategoryPositive, Strength: model.StrengthModerate, Description: "references a security audit"},
		{Name: "open_source", Kind: KindPattern, Pattern: pat(`\b(open[- ]source|github\.com/[\w.-]+)\b`), Category: model.CategoryPositive, Strength: model.StrengthWeak, Description: "code is publicly available"},
		{Name: "testnet_mainnet", Kind: KindPattern, Pattern: pat(`\b(testnet|mainnet)\s+(is\s+)?(live|launched|running)\b`), Category: model.CategoryPositive, Strength: model.StrengthModerate, Description: "working network deployment"},
		{Name: "named_team", Kind: KindPattern, Pattern: pat(`\b(ph\.?d|professor|former (google|meta|microsoft|amazon|coinbase)|doxxed team)\b`), Category: model.CategoryPositive, Strength: model.StrengthWeak, Description: "identifiable, credentialed team"},

		// Red flags.
		{Name: "guaranteed_returns", Kind: KindPattern, Pattern: pat(`\b(guaranteed|risk[- ]free)\s+(returns?|profits?|apy|yield)\b|\b\d{3,}%\s*(apy|apr|returns?)\b`), Category: model.CategoryRedFlag, Strength: model.StrengthStrong, Description: "promises guaranteed returns"},
		{Name: "urgency_pressure", Kind: KindPattern, Pattern: pat(`\b(don'?t miss out|last chance|act now|presale ends|limited spots?)\b`), Category: model.CategoryRedFlag, Strength: model.StrengthModerate, Description: "urgency-pressure marketing"},
		{Name: "anonymous_team", Kind: KindPattern, Pattern: pat(`\b(anonymous (team|founders?)|team wishes to remain)\b`), Category: model.CategoryRedFlag, Strength: model.StrengthModerate, Description: "anonymous team"},
		{Name: "moon_language", Kind: KindPattern, Pattern: pat(`\b(to the moon|100x|1000x|next bitcoin|get rich)\b`), Category: model.CategoryRedFlag, Strength: model.StrengthWeak, Description: "speculative hype language"},
		{Name: "referral_pyramid", Kind: KindPattern, Pattern: pat(`\b(referral (bonus|reward|commission)|multi[- ]level|recruit(ing)? (members|investors))\b`), Category: model.CategoryRedFlag, Strength: model.StrengthStrong, Description: "referral/pyramid incentive structure"},

		// Density metrics.
		{Name: "math_density", Kind: KindDensity, Pattern: pat(`[=∑∏∈≤≥≠∀∃^]|\b(equation|formula|theorem|lemma|probability|entropy|modulo|polynomial)\b`), Metric: model.MetricMathDensity},
		{Name: "marketing_density", Kind: KindDensity, Pattern: pat(`\b(revolutionary|game[- ]chang(er|ing)|disrupt(ive|ing)?|best[- ]in[- ]class|unprecedented|world[- ]class|moon|lambo)\b|!{2,}|🚀|💎`), Metric: model.MetricMarketingDensity},
		{Name: "security_density", Kind: KindDensity, Pattern: pat(`\b(audit|security|vulnerabilit(y|ies)|threat model|attack (vector|surface)|key management|multisig|bug bounty)\b`), Metric: model.MetricSecurityDensity},
	}
}

// WhitepaperTable adapts the stock table for whitepaper text, where formal
// content is expected and marketing language is a stronger negative.
func WhitepaperTable() Table {
	t := WebsiteTable()
	extra := Table{
		{Name: "citation_apparatus", Kind: KindPattern, Pattern: pat(`\[\d{1,3}\]|\bet al\.|\breferences\b`), Category: model.CategoryPositive, Strength: model.StrengthWeak, Description: "cites prior work"},
		{Name: "benchmark_results", Kind: KindPattern, Pattern: pat(`\b(\d+[, ]?\d*)\s*(tps|transactions per second)\b|\blatency of \d+\s*ms\b`), Category: model.CategoryTechnical, Strength: model.StrengthWeak, Description: "reports performance measurements"},
	}
	return append(t, extra...)
}

// SocialTable adapts the stock table for social-media history, which skews
// toward hype detection.
func SocialTable() Table {
	t := WebsiteTable()
	extra := Table{
		{Name: "giveaway_scam", Kind: KindPattern, Pattern: pat(`\b(giveaway|airdrop)\b.{0,60}\b(send|deposit)\b`), Category: model.CategoryRedFlag, Strength: model.StrengthStrong, Description: "send-to-receive giveaway pattern"},
		{Name: "engagement_farming", Kind: KindPattern, Pattern: pat(`\b(retweet to win|tag \d+ friends|follow and like)\b`), Category: model.CategoryRedFlag, Strength: model.StrengthWeak, Description: "engagement farming"},
	}
	return append(t, extra...)
}
