package worker

import (
	"fmt"
	"strings"
)

// FallbackScript synthesizes a minimal templated script from the idea alone.
// It is the guaranteed deliverable when analysis or generation cannot
// complete within the retry budget.
func FallbackScript(idea string) string {
	idea = strings.TrimSpace(idea)
	if idea == "" {
		idea = "your idea"
	}
	return fmt.Sprintf(`Hook: Stop scrolling — here's %s in under 30 seconds.

Beat 1: Open on the problem your audience feels every day.
Beat 2: Show %s in action with one concrete example.
Beat 3: Call out the single biggest mistake people make here.

CTA: Follow for more, and save this for your next shoot.

(We couldn't analyze the reference reel this time, so this draft is built from your idea alone.)`, idea, idea)
}
