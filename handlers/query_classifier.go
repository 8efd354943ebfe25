package handlers

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"support-router/models"
)

const queryPromptTemplate = `You are the customer support triage assistant for %s, a business specializing in %s.

Classify the customer message below.

Categories (pick exactly one): %s

Message: "%s"

Respond ONLY with valid JSON (no markdown, no code blocks):
{"category": "one of the categories", "is_spam": true or false, "needs_escalation": true if a human must step in (complaints, urgent problems, refunds, explicit requests for a person), "informational": true if the message only asks for general product or brand information}`

type aiQueryClassification struct {
	Category        string `json:"category" validate:"required"`
	IsSpam          bool   `json:"is_spam"`
	NeedsEscalation bool   `json:"needs_escalation"`
	Informational   bool   `json:"informational"`
}

type keywordRule struct {
	re       *regexp.Regexp
	category string
}

var (
	categoryRules = []keywordRule{
		{regexp.MustCompile(`(?i)\b(refund|broken|damaged|terrible|worst|complain\w*)\b`), models.CategoryComplaint},
		{regexp.MustCompile(`(?i)\b(not working|stopped working|no sound|issue|problem|error|fix)\b`), models.CategorySupport},
		{regexp.MustCompile(`(?i)\b(order|delivery|shipping|shipped|tracking)\b`), models.CategoryOrderStatus},
		{regexp.MustCompile(`(?i)\b(install\w*|setup|set up|mount\w*|wiring)\b`), models.CategoryInstallation},
		{regexp.MustCompile(`(?i)\b(price|prices|pricing|cost|how much|quote|budget)\b`), models.CategoryPricing},
		{regexp.MustCompile(`(?i)\b(brand|brands|do you (carry|sell|stock))\b`), models.CategoryBrandInquiry},
		{regexp.MustCompile(`(?i)\b(home theat(er|re)|projector|receiver|soundbar|surround)\b`), models.CategoryHomeTheater},
		{regexp.MustCompile(`(?i)\b(automation|smart home|lighting control|smart lights?)\b`), models.CategoryHomeAutomation},
		{regexp.MustCompile(`(?i)\b(speakers?|subwoofers?|amplifiers?)\b`), models.CategorySpeakers},
	}
	escalationRe = regexp.MustCompile(`(?i)\b(urgent|asap|manager|human|real person|agent|representative|refund|call me)\b`)
)

// QueryClassifier assigns a category and escalation flag to every text
// message. Without AI it falls back to keyword rules plus the spam
// classifier.
type QueryClassifier struct {
	intel   Intelligence
	spam    SpamClassifier
	profile BusinessProfile
}

func NewQueryClassifier(intel Intelligence, spam SpamClassifier, profile BusinessProfile) *QueryClassifier {
	return &QueryClassifier{intel: intel, spam: spam, profile: profile}
}

func (q *QueryClassifier) Classify(ctx context.Context, text string) models.QueryClassification {
	prompt := fmt.Sprintf(queryPromptTemplate, q.profile.Name, q.profile.Description,
		strings.Join(models.QueryCategories, ", "), text)

	var out aiQueryClassification
	if q.intel.TryClassify(ctx, prompt, &out) {
		category := normalizeCategory(out.Category)
		if out.IsSpam {
			category = models.CategorySpam
		}
		return models.QueryClassification{
			Category:        category,
			IsSpam:          out.IsSpam || category == models.CategorySpam,
			NeedsEscalation: out.NeedsEscalation,
			Informational:   out.Informational || isInformationalCategory(category),
		}
	}

	return q.classifyByRules(ctx, text)
}

func (q *QueryClassifier) classifyByRules(ctx context.Context, text string) models.QueryClassification {
	if verdict := q.spam.Classify(ctx, text); verdict.IsSpam {
		return models.QueryClassification{Category: models.CategorySpam, IsSpam: true}
	}

	category := models.CategoryGeneral
	for _, rule := range categoryRules {
		if rule.re.MatchString(text) {
			category = rule.category
			break
		}
	}

	return models.QueryClassification{
		Category: category,
		NeedsEscalation: escalationRe.MatchString(text) ||
			category == models.CategoryComplaint ||
			category == models.CategorySupport,
		Informational: isInformationalCategory(category),
	}
}

// normalizeCategory maps free-form model output onto a known category.
func normalizeCategory(raw string) string {
	raw = strings.TrimSpace(raw)
	for _, c := range models.QueryCategories {
		if strings.EqualFold(c, raw) {
			return c
		}
	}
	return models.CategoryGeneral
}

func isInformationalCategory(category string) bool {
	return category == models.CategoryBrandInquiry || category == models.CategoryProductInfo
}
