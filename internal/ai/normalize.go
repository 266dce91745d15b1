package ai

import "encoding/json"

type openRouterResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// Normalize returns the answer text from a provider's raw response body. A
// body that does not have the expected shape yields "".
func Normalize(provider Provider, raw []byte) string {
	switch provider {
	case ProviderOpenRouter, ProviderStub:
		var out openRouterResponse
		if err := json.Unmarshal(raw, &out); err != nil {
			return ""
		}
		if len(out.Choices) == 0 {
			return ""
		}
		return out.Choices[0].Message.Content
	case ProviderGemini:
		var out geminiResponse
		if err := json.Unmarshal(raw, &out); err != nil {
			return ""
		}
		if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
			return ""
		}
		return out.Candidates[0].Content.Parts[0].Text
	default:
		return ""
	}
}

// ResponseModel returns the top-level "model" field of a chat-completion
// body, or "" when there is none.
func ResponseModel(raw []byte) string {
	var out struct {
		Model string `json:"model"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return ""
	}
	return out.Model
}
