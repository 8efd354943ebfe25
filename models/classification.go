package models

// VerdictSource names the strategy that produced a spam verdict.
type VerdictSource string

const (
	SourceHeuristic VerdictSource = "heuristic"
	SourceAI        VerdictSource = "ai"
)

// SpamVerdict is the result of classifying one message.
type SpamVerdict struct {
	IsSpam     bool          `json:"is_spam"`
	Confidence float64       `json:"confidence"`
	Reason     string        `json:"reason"`
	Source     VerdictSource `json:"source"`
}

// Categories used for query classification.
const (
	CategorySpam           = "Spam"
	CategoryGeneral        = "General Inquiry"
	CategoryBrandInquiry   = "Brand Inquiry"
	CategoryProductInfo    = "Product Information"
	CategoryPricing        = "Pricing"
	CategoryInstallation   = "Installation"
	CategorySupport        = "Technical Support"
	CategoryComplaint      = "Complaint"
	CategoryOrderStatus    = "Order Status"
	CategoryHomeTheater    = "Home Theater"
	CategoryHomeAutomation = "Home Automation"
	CategorySpeakers       = "Speakers"
)

// QueryCategories lists every category the classifier may return.
var QueryCategories = []string{
	CategoryHomeTheater,
	CategoryHomeAutomation,
	CategorySpeakers,
	CategoryInstallation,
	CategoryPricing,
	CategoryProductInfo,
	CategoryBrandInquiry,
	CategoryOrderStatus,
	CategorySupport,
	CategoryComplaint,
	CategoryGeneral,
	CategorySpam,
}

// QueryClassification is the category verdict for one message.
type QueryClassification struct {
	Category        string `json:"category"`
	IsSpam          bool   `json:"is_spam"`
	NeedsEscalation bool   `json:"needs_escalation"`
	Informational   bool   `json:"informational"`
}

// ExtractedFields holds whatever contact details could be read from free text.
type ExtractedFields struct {
	Name    string `json:"name" validate:"omitempty,min=2,max=80"`
	Phone   string `json:"phone" validate:"omitempty,min=6,max=20,phone_chars"`
	Email   string `json:"email" validate:"omitempty,email,max=254"`
	Inquiry string `json:"inquiry" validate:"omitempty,max=1000"`
}

// IsEmpty reports whether nothing was extracted.
func (f ExtractedFields) IsEmpty() bool {
	return f.Name == "" && f.Phone == "" && f.Email == "" && f.Inquiry == ""
}
