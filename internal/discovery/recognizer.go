package discovery

import (
	"context"
	"fmt"
	"strings"

	"dealradar/internal/llm"
	"dealradar/internal/services"
)

// Recognition is what a Recognizer knows about a company.
type Recognition struct {
	Name    string `json:"company_name"`
	Country string `json:"country"`
	Website string `json:"website"`
	IRURL   string `json:"ir_url"`
}

// Recognizer resolves a company name to its public web presence.
type Recognizer interface {
	Recognize(ctx context.Context, companyName string) (Recognition, error)
}

const recognizeSystemPrompt = "You are an expert in identifying global companies and their investor relations pages. Return only valid JSON."

const recognizeUserPrompt = `Extract company information from this company name: %q

Return ONLY a JSON object with these fields:
{
  "company_name": "Official Company Name",
  "country": "ISO country code",
  "website": "https://www.company.com",
  "ir_url": "https://investor.company.com or null if unknown"
}

Be accurate with official names and websites. If unsure about ir_url, set it to null.`

// LLMRecognizer asks the chat model for a company's website.
type LLMRecognizer struct {
	client *llm.Client
}

// NewLLMRecognizer returns a nil Recognizer when the client has no
// credentials.
func NewLLMRecognizer(client *llm.Client) Recognizer {
	if !client.Enabled() {
		return nil
	}
	return &LLMRecognizer{client: client}
}

// Recognize implements Recognizer.
func (r *LLMRecognizer) Recognize(ctx context.Context, companyName string) (Recognition, error) {
	content, err := r.client.CompleteJSON(ctx, recognizeSystemPrompt, fmt.Sprintf(recognizeUserPrompt, companyName))
	if err != nil {
		return Recognition{}, err
	}
	var out Recognition
	if err := llm.DecodeJSON(content, &out); err != nil {
		return Recognition{}, services.Wrap(services.ErrUpstreamUnavailable, "discover", "recognize",
			"model returned invalid JSON", err)
	}
	out.Name = strings.TrimSpace(out.Name)
	out.Country = strings.ToUpper(strings.TrimSpace(out.Country))
	out.Website = strings.TrimSpace(out.Website)
	out.IRURL = strings.TrimSpace(out.IRURL)
	if strings.EqualFold(out.IRURL, "null") {
		out.IRURL = ""
	}
	if out.Website == "" {
		return Recognition{}, services.Wrap(services.ErrNotFound, "discover", "recognize",
			fmt.Sprintf("no website known for %q", companyName), nil)
	}
	return out, nil
}
