package ai

// BrandLine must open every generated episode verbatim. Product requirement,
// referenced by the script prompts and asserted in QA checks.
const BrandLine = "Welcome to PODSLICE, your shortcut to the conversations that matter."

// Pacing assumptions for sizing scripts to a target duration.
const (
	WordsPerMinuteMin    = 140
	WordsPerMinuteMax    = 180
	DefaultTargetMinutes = 5
)

const summaryPromptTemplate = `Summarize the following transcript in neutral, factual prose.
Cover every major topic and conclusion. Do not editorialize, do not address the reader, and do not mention that this is a summary of a transcript.

Transcript:
%s`

// The non-impersonation framing is a legal requirement: the narrator comments
// on third-party content and must never speak as the original participants.
const scriptPromptTemplate = `Write a podcast narration script based on the source summary below.

Requirements:
- The script MUST begin with this exact line, verbatim: "%s"
- Length between %d and %d words.
- The narrator is a commentator discussing someone else's content. Never impersonate, quote in first person, or role-play the original speakers; always attribute ("the host explains...", "the guest argues...").
- Plain spoken prose only. No headings, no stage directions, no sound cues.

Source summary:
%s`

const dialoguePromptTemplate = `Write a two-host podcast dialogue based on the source summary below.

Requirements:
- The first line MUST be spoken by speaker A and begin with this exact text, verbatim: "%s"
- Total length between %d and %d words across all lines.
- The hosts are commentators discussing someone else's content. Never impersonate or role-play the original speakers; always attribute.
- Respond ONLY with a JSON array of objects, each {"speaker": "A" or "B", "text": "..."}, in speaking order. No markdown, no commentary outside the JSON.

Source summary:
%s`
