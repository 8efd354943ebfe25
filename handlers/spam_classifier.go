package handlers

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strings"

	"support-router/models"
)

// SpamClassifier decides whether a message is spam.
type SpamClassifier interface {
	Classify(ctx context.Context, text string) models.SpamVerdict
}

const noSpamIndicators = "No spam indicators found"

// Term is a weighted keyword matched on word boundaries, case-insensitively.
type Term struct {
	Phrase string
	Weight float64
	Label  string
}

// Pattern is a weighted regular expression.
type Pattern struct {
	Expr   string
	Weight float64
	Label  string
}

// Vocabulary is the set of spam indicators the heuristic scores against.
type Vocabulary struct {
	Terms    []Term
	Patterns []Pattern
}

// DefaultVocabulary targets a home theater / automation / speaker retailer:
// scam phrasing, products the business does not sell, and money claims.
func DefaultVocabulary() Vocabulary {
	var v Vocabulary
	for _, phrase := range []string{
		"buy now", "free money", "click here", "winner", "congratulations you won",
		"act now", "limited time offer", "make money fast", "work from home",
		"double your income", "risk free", "no obligation", "special promotion",
		"exclusive deal", "urgent action required", "crypto", "bitcoin", "forex",
	} {
		v.Terms = append(v.Terms, Term{Phrase: phrase, Weight: 0.3, Label: "Contains spam keyword"})
	}
	for _, phrase := range []string{
		"mobile phone", "cell phone", "smartphone", "iphone", "android phone",
		"phone repair", "screen repair", "phone case", "screen protector", "sim card",
		"laptop", "tablet", "ipad", "printer", "smartwatch",
	} {
		v.Terms = append(v.Terms, Term{Phrase: phrase, Weight: 0.5, Label: "Mentions unrelated product"})
	}
	v.Patterns = []Pattern{
		{Expr: `https?://bit\.ly`, Weight: 0.4, Label: "shortened link"},
		{Expr: `https?://t\.co/`, Weight: 0.4, Label: "shortened link"},
		{Expr: `https?://tinyurl`, Weight: 0.4, Label: "shortened link"},
		{Expr: `\$\d+[,\d]*\s*(per|/)\s*(day|week|month)`, Weight: 0.4, Label: "income claim"},
		{Expr: `earn\s+\$?\d+`, Weight: 0.4, Label: "earnings claim"},
	}
	return v
}

type compiledIndicator struct {
	re     *regexp.Regexp
	weight float64
	reason string
}

// HeuristicClassifier scores text against a weighted vocabulary. It is
// pure and deterministic.
type HeuristicClassifier struct {
	threshold  float64
	indicators []compiledIndicator
}

// NewHeuristicClassifier compiles vocab. Messages scoring at or above
// threshold are spam.
func NewHeuristicClassifier(threshold float64, vocab Vocabulary) (*HeuristicClassifier, error) {
	h := &HeuristicClassifier{threshold: threshold}
	for _, term := range vocab.Terms {
		re, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(term.Phrase) + `\b`)
		if err != nil {
			return nil, fmt.Errorf("compile term %q: %w", term.Phrase, err)
		}
		h.indicators = append(h.indicators, compiledIndicator{
			re:     re,
			weight: term.Weight,
			reason: fmt.Sprintf("%s: %q", term.Label, term.Phrase),
		})
	}
	for _, p := range vocab.Patterns {
		re, err := regexp.Compile(`(?i)` + p.Expr)
		if err != nil {
			return nil, fmt.Errorf("compile pattern %q: %w", p.Expr, err)
		}
		h.indicators = append(h.indicators, compiledIndicator{
			re:     re,
			weight: p.Weight,
			reason: "Matches suspicious pattern: " + p.Label,
		})
	}
	return h, nil
}

// Threshold returns the spam cut-off.
func (h *HeuristicClassifier) Threshold() float64 {
	return h.threshold
}

func (h *HeuristicClassifier) Classify(_ context.Context, text string) models.SpamVerdict {
	var score float64
	var reasons []string
	for _, ind := range h.indicators {
		if ind.re.MatchString(text) {
			score += ind.weight
			reasons = append(reasons, ind.reason)
		}
	}

	if len(reasons) == 0 {
		return models.SpamVerdict{Reason: noSpamIndicators, Source: models.SourceHeuristic}
	}

	score = math.Min(1.0, math.Round(score*100)/100)
	return models.SpamVerdict{
		IsSpam:     score >= h.threshold,
		Confidence: score,
		Reason:     strings.Join(reasons, "; "),
		Source:     models.SourceHeuristic,
	}
}

const aiSpamPromptTemplate = `You are a spam detection AI for %[1]s, a business specializing in %[2]s.

Classify this Facebook message as SPAM or GENUINE.

SPAM includes:
1. Inquiries about products %[1]s does not sell (mobile phones, laptops, tablets, printers and similar)
2. Generic scams (free money, prizes, work from home schemes)
3. Suspicious links or money-making claims
4. Promotions or solicitations aimed at the business

GENUINE includes:
- Questions about %[2]s
- Installation inquiries
- Product pricing and availability
- General customer support, or a customer sharing their contact details

Message: "%[3]s"

Respond ONLY with valid JSON (no markdown, no code blocks):
{"classification": "SPAM" or "GENUINE", "confidence": 0.0-1.0, "reason": "brief explanation"}`

type aiSpamVerdict struct {
	Classification string   `json:"classification" validate:"required,oneof=SPAM GENUINE"`
	Confidence     *float64 `json:"confidence" validate:"required,gte=0,lte=1"`
	Reason         string   `json:"reason" validate:"required"`
}

// AIClassifier asks the intelligence gateway for a verdict and falls back
// to another classifier when the answer is missing or malformed.
type AIClassifier struct {
	intel    Intelligence
	profile  BusinessProfile
	fallback SpamClassifier
}

func NewAIClassifier(intel Intelligence, profile BusinessProfile, fallback SpamClassifier) *AIClassifier {
	return &AIClassifier{intel: intel, profile: profile, fallback: fallback}
}

func (a *AIClassifier) Classify(ctx context.Context, text string) models.SpamVerdict {
	var out aiSpamVerdict
	prompt := fmt.Sprintf(aiSpamPromptTemplate, a.profile.Name, a.profile.Description, text)
	if !a.intel.TryClassify(ctx, prompt, &out) {
		return a.fallback.Classify(ctx, text)
	}
	return models.SpamVerdict{
		IsSpam:     out.Classification == "SPAM",
		Confidence: *out.Confidence,
		Reason:     out.Reason,
		Source:     models.SourceAI,
	}
}
