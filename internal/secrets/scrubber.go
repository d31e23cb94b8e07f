package secrets

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	gitleaksConfig "github.com/zricethezav/gitleaks/v8/config"
	"github.com/zricethezav/gitleaks/v8/detect"
	gitleaksRegexp "github.com/zricethezav/gitleaks/v8/regexp"
)

var redactionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "docrag_secrets_redactions_total",
	Help: "Secrets redacted from outgoing chunk text, by Gitleaks rule.",
}, []string{"rule"})

// Finding describes a redacted secret without its value.
type Finding struct {
	RuleID      string `json:"rule_id"`
	Description string `json:"description"`
	Line        int    `json:"line"`
}

// Result is the scrubbed text and what was removed from it.
type Result struct {
	Text     string
	Findings []Finding
}

// Redacted reports whether anything was removed.
func (r Result) Redacted() bool {
	return len(r.Findings) > 0
}

// Scrubber removes secrets from text.
type Scrubber interface {
	Scrub(text string) Result
}

// GitleaksScrubber detects secrets with the default Gitleaks rule set plus
// an optional allow-list.
type GitleaksScrubber struct {
	mu       sync.Mutex
	detector *detect.Detector
}

// NewGitleaks builds the detector once; it is reused for every Scrub call.
func NewGitleaks(allowlist *Allowlist) (*GitleaksScrubber, error) {
	detector, err := detect.NewDetectorDefaultConfig()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDetectorInit, err)
	}
	if allowlist != nil && (len(allowlist.Regexes) > 0 || len(allowlist.StopWords) > 0) {
		if err := applyAllowlist(&detector.Config, allowlist); err != nil {
			return nil, err
		}
	}
	return &GitleaksScrubber{detector: detector}, nil
}

func applyAllowlist(cfg *gitleaksConfig.Config, allowlist *Allowlist) error {
	al := &gitleaksConfig.Allowlist{
		Description: "docrag allowlist",
		StopWords:   allowlist.StopWords,
	}
	for _, pattern := range allowlist.Regexes {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return fmt.Errorf("%w: %q: %v", ErrInvalidRegex, pattern, err)
		}
		al.Regexes = append(al.Regexes, (*gitleaksRegexp.Regexp)(re))
	}
	cfg.Allowlists = append(cfg.Allowlists, al)
	return nil
}

// Scrub replaces every detected secret with [REDACTED:rule-id].
func (s *GitleaksScrubber) Scrub(text string) Result {
	if strings.TrimSpace(text) == "" {
		return Result{Text: text}
	}

	s.mu.Lock()
	found := s.detector.DetectString(text)
	s.mu.Unlock()

	if len(found) == 0 {
		return Result{Text: text}
	}

	// Longest secrets first so a secret containing another is replaced whole.
	sort.SliceStable(found, func(i, j int) bool {
		return len(found[i].Secret) > len(found[j].Secret)
	})

	out := text
	findings := make([]Finding, 0, len(found))
	for _, f := range found {
		if f.Secret == "" || !strings.Contains(out, f.Secret) {
			continue
		}
		out = strings.ReplaceAll(out, f.Secret, "[REDACTED:"+f.RuleID+"]")
		findings = append(findings, Finding{
			RuleID:      f.RuleID,
			Description: f.Description,
			Line:        f.StartLine,
		})
		redactionsTotal.WithLabelValues(f.RuleID).Inc()
	}
	return Result{Text: out, Findings: findings}
}

// NoopScrubber returns text unchanged.
type NoopScrubber struct{}

// Scrub implements Scrubber.
func (NoopScrubber) Scrub(text string) Result {
	return Result{Text: text}
}

var (
	_ Scrubber = (*GitleaksScrubber)(nil)
	_ Scrubber = NoopScrubber{}
)
