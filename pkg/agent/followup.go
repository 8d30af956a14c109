package agent

import (
	"context"
	"fmt"

	"github.com/bio-nexus/backend/pkg/ai"
)

const maxFollowUps = 3

type followUpResponse struct {
	Questions []string `json:"questions" jsonschema:"maxItems=3"`
}

// FollowUps suggests up to three follow-up questions for an answered
// question. It returns no questions when the provider is unavailable.
func FollowUps(ctx context.Context, client ai.ReasoningClient, question, answer string) ([]string, StageReport) {
	o := call(ctx, client, "follow_up", "Follow-up questions for a research conversation",
		fmt.Sprintf(ai.FollowUpPrompt, question, answer),
		func(r *followUpResponse) error {
			r.Questions = nonEmpty(r.Questions)
			if len(r.Questions) > maxFollowUps {
				r.Questions = r.Questions[:maxFollowUps]
			}
			return nil
		},
		func() followUpResponse { return followUpResponse{Questions: []string{}} },
	)
	return o.Value.Questions, report("follow_up", o)
}
