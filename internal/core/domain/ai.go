package domain

// AIProvider identifies an AI backend
type AIProvider string

const (
	ProviderOpenAI  AIProvider = "openai"  // primary vendor A
	ProviderGemini  AIProvider = "gemini"  // primary vendor B
	ProviderManaged AIProvider = "managed" // centrally billed fallback
)

// Valid reports whether p is one of the known providers
func (p AIProvider) Valid() bool {
	switch p {
	case ProviderOpenAI, ProviderGemini, ProviderManaged:
		return true
	}
	return false
}

// AICredential is resolved per request and never persisted as its own entity
type AICredential struct {
	Provider AIProvider `json:"provider"`
	APIKey   string     `json:"-"`
	BaseURL  string     `json:"base_url,omitempty"`
	Model    string     `json:"model,omitempty"`
}

// ManagedAISettings is the global admin record for the managed provider
type ManagedAISettings struct {
	Enabled bool   `db:"enabled"`
	APIKey  string `db:"api_key"`
	BaseURL string `db:"base_url"`
	Model   string `db:"model"`
}

// OwnerAIConfig is an owner's personal AI preference
type OwnerAIConfig struct {
	OwnerID      string `db:"owner_id"`
	UseManagedAI bool   `db:"use_managed_ai"`
	IsActive     bool   `db:"is_active"`
	Provider     string `db:"provider"`
	APIKey       string `db:"api_key"`
	BaseURL      string `db:"base_url"`
	Model        string `db:"model"`
}

// ChatMessage is one provider-neutral message sent to an AI backend
type ChatMessage struct {
	Role      string   `json:"role"`
	Content   string   `json:"content"`
	ImageURLs []string `json:"image_urls,omitempty"`
}

// AIRequest is the gateway input
type AIRequest struct {
	Messages   []ChatMessage
	Credential AICredential
	HasMedia   bool
}

// AIResponse carries the completion and the provider that actually produced it
type AIResponse struct {
	Content    string
	Provider   AIProvider
	FellBack   bool
	DurationMs int64
}

// Sentiment labels
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
	SentimentInquiry  Sentiment = "inquiry"
)

// Reaction is a suggested reaction to a comment
type Reaction string

const (
	ReactionNone Reaction = "none"
	ReactionLike Reaction = "like"
	ReactionLove Reaction = "love"
)

// SentimentResult is computed per comment and consumed immediately by policy gates
type SentimentResult struct {
	Sentiment   Sentiment `json:"sentiment"`
	ShouldReply bool      `json:"should_reply"`
	Reaction    Reaction  `json:"reaction"`
}
