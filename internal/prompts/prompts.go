package prompts

import (
	"fmt"
	"strings"
)

// ============================================================================
// Transcript cleaning
// ============================================================================

// titlePlaceholder is replaced with the video title in CleanSystemPrompt.
const titlePlaceholder = "{{TITLE}}"

// CleanSystemPrompt turns raw broadcast captions into readable commentary.
const CleanSystemPrompt = `You clean up automatically generated captions from tennis broadcasts. Rewrite the raw text into readable commentary without losing anything an analyst would need.

CLEAN UP:
1. Grammar, punctuation and capitalization
2. Filler words such as "um", "uh", "you know"
3. Run-on speech: break it into sentences and logical paragraphs
4. Obvious speech-to-text mistakes, keeping the original meaning

KEEP EXACTLY:
- Player names, scores and statistics
- Tactical observations and strategy talk
- Momentum shifts and turning points
- Technical terminology (serve, volley, approach, slice, drop shot)
- Crowd reactions, emotional moments, coaching box moments
- Time references, match progression, tournament and historical context

FORMAT:
- Break paragraphs at natural boundaries: games, sets, key points
- Keep events in chronological order

NEVER:
- Add facts that are not in the captions
- Change scores, statistics or names
- Drop or condense rally descriptions or analysis

Video title: {{TITLE}}

Reply with the cleaned transcript only. No preamble, no notes about what you changed.`

// CleanSystem returns the system prompt for a video.
func CleanSystem(title string) string {
	if strings.TrimSpace(title) == "" {
		title = "(unknown)"
	}
	return strings.Replace(CleanSystemPrompt, titlePlaceholder, title, 1)
}

// CleanChunkSystem prefixes the system prompt with the chunk position.
// part is 1-based.
func CleanChunkSystem(title string, part, total int) string {
	return fmt.Sprintf("This is part %d of %d of a transcript.\n\n%s", part, total, CleanSystem(title))
}

// ============================================================================
// Transcript questions
// ============================================================================

// contextPlaceholder is replaced with the transcript excerpt in ChatSystemPrompt.
const contextPlaceholder = "{{CONTEXT}}"

// ChatSystemPrompt answers questions using only one match transcript.
const ChatSystemPrompt = `You answer questions about tennis matches using video transcripts.
Use only the context below. If the answer is not in the context, say politely that you don't have that information.

Give detailed, informative answers about the match, the players, scores and statistics mentioned in the transcript. Keep a conversational, helpful tone.

Context:
{{CONTEXT}}`

// ChatSystem returns the system prompt for a question about one video.
func ChatSystem(videoID, title, transcript string) string {
	header := fmt.Sprintf("From tennis match %q (Video ID: %s):\n", title, videoID)
	return strings.Replace(ChatSystemPrompt, contextPlaceholder, header+transcript, 1)
}
