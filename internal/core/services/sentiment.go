package services

import (
	"strings"

	"commerce-agent/internal/core/domain"
)

// Keyword sets are matched as lower-cased substrings, Bengali and English mixed.
var (
	negativeTerms = []string{
		// Bengali
		"জঘন্য", "খারাপ", "বাজে", "ফালতু", "প্রতারক", "ভুয়া", "ভূয়া", "চিটার", "ধোঁকা",
		"ঠকবাজ", "বাটপার", "নষ্ট", "নকল",
		// English
		"worst", "fake", "scam", "fraud", "terrible", "awful", "cheat", "disgusting",
		"poor quality", "waste of money", "bad",
		// Emoji
		"😡", "😠", "🤬", "👎", "💩",
	}

	inquiryTerms = []string{
		"?", "？",
		// Bengali
		"দাম", "কত", "আছে কি", "কিভাবে", "কীভাবে", "কোথায়", "ডেলিভারি", "অর্ডার", "সাইজ",
		"ইনবক্স", "জানাবেন",
		// English
		"price", "how much", "available", "delivery", "order", "size", "details", "inbox",
	}

	positiveTerms = []string{
		// Bengali
		"ভালো", "ভাল", "সুন্দর", "অসাধারণ", "দারুণ", "চমৎকার", "ধন্যবাদ", "পছন্দ", "মুগ্ধ",
		// English
		"good", "nice", "great", "awesome", "excellent", "love", "beautiful", "amazing",
		"thanks", "thank you", "wow", "perfect",
		// Emoji
		"❤", "😍", "👍", "🔥", "😊", "🥰",
	}
)

var sentimentOutcomes = map[domain.Sentiment]domain.SentimentResult{
	domain.SentimentNegative: {Sentiment: domain.SentimentNegative, ShouldReply: false, Reaction: domain.ReactionNone},
	domain.SentimentInquiry:  {Sentiment: domain.SentimentInquiry, ShouldReply: true, Reaction: domain.ReactionLike},
	domain.SentimentPositive: {Sentiment: domain.SentimentPositive, ShouldReply: true, Reaction: domain.ReactionLove},
	domain.SentimentNeutral:  {Sentiment: domain.SentimentNeutral, ShouldReply: true, Reaction: domain.ReactionLike},
}

// ClassifySentiment labels a comment with precedence negative > inquiry > positive > neutral
func ClassifySentiment(text string) domain.SentimentResult {
	lower := strings.ToLower(strings.TrimSpace(text))
	if lower == "" {
		return sentimentOutcomes[domain.SentimentNeutral]
	}

	switch {
	case containsAny(lower, negativeTerms):
		return sentimentOutcomes[domain.SentimentNegative]
	case containsAny(lower, inquiryTerms):
		return sentimentOutcomes[domain.SentimentInquiry]
	case containsAny(lower, positiveTerms):
		return sentimentOutcomes[domain.SentimentPositive]
	}
	return sentimentOutcomes[domain.SentimentNeutral]
}

func containsAny(s string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}
