package recommend

import (
	"encoding/json"
	"fmt"
	"strings"

	"datalens/internal/model"
)

// parseReply extracts the recommendation object from a model reply.
//
// Replies often wrap the JSON in prose or a code fence, so the parser
// takes the span from the first '{' to the last '}' and decodes that.
// Known limitation: prose containing braces outside the object widens
// the span; such replies fail to decode and the caller falls through
// to the next strategy.
func parseReply(reply string) (model.Recommendation, error) {
	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start < 0 || end <= start {
		return model.Recommendation{}, fmt.Errorf("no JSON object in reply")
	}

	var rec model.Recommendation
	if err := json.Unmarshal([]byte(reply[start:end+1]), &rec); err != nil {
		return model.Recommendation{}, fmt.Errorf("decode reply: %w", err)
	}
	if !model.ValidTarget(string(rec.Storage.Primary)) {
		return model.Recommendation{}, fmt.Errorf("reply names unknown storage %q", rec.Storage.Primary)
	}
	return rec, nil
}
