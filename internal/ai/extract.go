package ai

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/seanblong/testgen/pkg/models"
)

// ParseFailureSummary is returned in place of summaries when the model output
// holds no parseable JSON array.
const ParseFailureSummary = "Failed to parse AI response"

// ExtractSummaries pulls a JSON array of summaries out of free text. It takes
// the span from the first '[' to the last ']', which is not balanced bracket
// matching: prose with stray brackets around the array can break it. When the
// span is missing or invalid the whole text is tried, and when that fails a
// single sentinel summary is returned.
func ExtractSummaries(text string) []models.TestSummary {
	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")

	if start != -1 && end > start {
		out, err := decodeSummaries(text[start : end+1])
		if err == nil {
			return out
		}
		log.Warn().Err(err).Msg("bracketed span in AI response is not valid JSON")
	}

	out, err := decodeSummaries(text)
	if err != nil {
		log.Warn().Err(err).Msg("failed to parse JSON from AI response")
		return []models.TestSummary{{ID: 1, Summary: ParseFailureSummary}}
	}
	return out
}

// looseSummary accepts whatever types the model chose for the fields.
type looseSummary struct {
	ID      any `json:"id"`
	Summary any `json:"summary"`
}

// decodeSummaries parses s as a JSON array of objects. Ids may be integers,
// floats or numeric strings; an id that is missing or not a number takes the
// element's 1-based position.
func decodeSummaries(s string) ([]models.TestSummary, error) {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()

	var loose []looseSummary
	if err := dec.Decode(&loose); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("unexpected data after JSON value")
	}

	out := make([]models.TestSummary, 0, len(loose))
	for i, l := range loose {
		out = append(out, models.TestSummary{
			ID:      summaryID(l.ID, i+1),
			Summary: summaryText(l.Summary),
		})
	}
	return out, nil
}

func summaryID(v any, pos int) int {
	var raw string
	switch x := v.(type) {
	case json.Number:
		raw = x.String()
	case string:
		raw = strings.TrimSpace(x)
	default:
		return pos
	}
	if n, err := strconv.Atoi(raw); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return int(f)
	}
	return pos
}

func summaryText(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	default:
		return fmt.Sprint(x)
	}
}
