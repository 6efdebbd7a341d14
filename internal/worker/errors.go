package worker

import "strings"

// Failure codes written to video_jobs.error_code. The raw vendor error text
// is logged, never shown to end users; error_message carries the mapped
// user-facing message.
const (
	ErrCodeMisconfigured = "misconfigured"
	ErrCodeVendor        = "vendor_error"
	ErrCodeContent       = "content_rejected"
	ErrCodeTimeout       = "timeout"
	ErrCodeValidation    = "validation"
	ErrCodeInternal      = "internal"
)

const genericUserMessage = "Something went wrong while generating your video. Please try again."

// userMessagePatterns pattern-matches raw vendor error text into the small
// user-facing taxonomy. First match wins; order puts the most specific
// categories first.
var userMessagePatterns = []struct {
	code     string
	message  string
	keywords []string
}{
	{
		code:     ErrCodeTimeout,
		message:  "Video generation timed out. Please try again.",
		keywords: []string{"timed out", "timeout", "deadline exceeded"},
	},
	{
		code:     ErrCodeMisconfigured,
		message:  "The video service is not configured correctly. Please contact support.",
		keywords: []string{"api key", "unauthorized", "status 401", "status 403", "forbidden", "invalid credentials"},
	},
	{
		code:     ErrCodeContent,
		message:  "One of your photos was rejected by the video service. Try removing it and generating again.",
		keywords: []string{"moderation", "safety", "nsfw", "content policy", "blocked by"},
	},
	{
		code:     ErrCodeVendor,
		message:  "The video service is busy right now. Please try again in a few minutes.",
		keywords: []string{"rate limit", "too many requests", "status 429", "status 503", "overloaded", "quota"},
	},
}

// classifyError maps a pipeline error to (error_code, user-facing message).
// Unmatched errors fall back to a generic retry message with the internal
// code.
func classifyError(err error) (string, string) {
	if err == nil {
		return "", ""
	}
	text := strings.ToLower(err.Error())
	for _, p := range userMessagePatterns {
		for _, kw := range p.keywords {
			if strings.Contains(text, kw) {
				return p.code, p.message
			}
		}
	}
	return ErrCodeInternal, genericUserMessage
}
