package worker

import (
	"fmt"
	"strings"

	"github.com/reelscript/api/internal/model"
)

const analysisSystemPrompt = `You analyze short-form video reels. Reply with a single JSON object:
{"transcript": string, "visual_cues": [string], "hook_pattern": string, "tone": string}.
Leave fields you cannot determine empty. No prose outside the JSON.`

const generationSystemPrompt = `You write short-form video scripts. Produce a ready-to-record script:
a hook line, 3-5 beats, and a closing call to action. Plain text only.`

func analysisUserPrompt(transcript string) string {
	var b strings.Builder
	b.WriteString("Analyze this reel.")
	if transcript != "" {
		b.WriteString("\n\nAudio transcript:\n")
		b.WriteString(transcript)
	}
	b.WriteString("\n\nUse the attached frames for visual cues when present.")
	return b.String()
}

func generationUserPrompt(idea, hints string, analysis *model.ReelAnalysis, styleContext []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write a reel script for this idea: %s\n", idea)
	if hints != "" {
		fmt.Fprintf(&b, "Creator notes: %s\n", hints)
	}
	if analysis != nil && !analysis.Empty() {
		b.WriteString("\nReference reel analysis:\n")
		if analysis.HookPattern != "" {
			fmt.Fprintf(&b, "- Hook pattern: %s\n", analysis.HookPattern)
		}
		if analysis.Tone != "" {
			fmt.Fprintf(&b, "- Tone: %s\n", analysis.Tone)
		}
		if len(analysis.VisualCues) > 0 {
			fmt.Fprintf(&b, "- Visual cues: %s\n", strings.Join(analysis.VisualCues, "; "))
		}
		if analysis.Transcript != "" {
			fmt.Fprintf(&b, "- Transcript:\n%s\n", analysis.Transcript)
		}
	}
	if len(styleContext) > 0 {
		b.WriteString("\nEarlier scripts written from the same reel, for stylistic consistency:\n")
		for i, s := range styleContext {
			fmt.Fprintf(&b, "--- script %d ---\n%s\n", i+1, s)
		}
	}
	return b.String()
}
