package planner

import (
	"fmt"
	"strings"

	"github.com/tidyfolder/tidyfolder/internal/models"
)

// Caps applied when rendering the file summary. The summary is the bulk of
// the prompt, so every field is truncated to keep the context affordable
// even for large folders.
const (
	maxSummaryFiles   = 300
	maxSummaryName    = 50
	maxSummaryCaption = 80
	maxSummaryTags    = 8
)

const planSchema = `{
  "folders": {
    "<folder-name>": [<file_id>, <file_id>, ...],
    ...
  }
}`

// systemPrompt pins the planner to the proposer role: it only ever returns
// folder assignments keyed by the numeric ids we hand it. Everything that
// touches disk happens on our side after validation.
var systemPrompt = `You are a file organization assistant. Propose how to organize files into folders based on user instructions.

OUTPUT FORMAT - Return ONLY this JSON structure:
` + planSchema + `

CRITICAL ID RULE:
- Each file I give you has a numeric ID shown as "id:NUMBER"
- You MUST use the EXACT same number in your response
- Example: If I show "id:38 | interface.jpg", you return {"folders": {"interfaces": [38]}}
- NEVER invent IDs - only use the numbers I provide

FOLDER NAMING:
- Use lowercase, kebab-case (e.g., "interfaces", "client-invoices", "2024-receipts")
- Create the folder name the user asks for, or a descriptive name based on content
- Maximum 2 levels deep (e.g., "clients/acme" ok, "a/b/c" not ok)

FILE SELECTION:
- ONLY include files that match the user's instruction
- Leave non-matching files OUT of the response entirely
- It's OK to return empty {"folders": {}} if nothing matches
- Do NOT create "unsorted" or "other" folders unless asked

EXAMPLE:
User: "Put interface files in an interfaces folder"
Files: id:38 | interface.jpg | tags:[ui, mockup]
       id:39 | receipt.pdf | tags:[finance]
Response: {"folders": {"interfaces": [38]}}
(Note: receipt.pdf is NOT included because it doesn't match)

JSON only. No markdown. No explanation.`

// BuildMessages assembles the chat exchange for one plan request. The user
// message differs by mode: auto-organize instructions demand full coverage
// of every file, while specific instructions let the planner leave
// non-matching files out.
func BuildMessages(instruction string, files []models.FileSummary) []Message {
	summary := buildFileSummary(files)

	var user string
	if IsAutoOrganize(instruction) {
		user = fmt.Sprintf(`User instruction: %q

Files to organize (%d total):
%s

CRITICAL OVERRIDE FOR AUTO-ORGANIZE:
- You MUST include EVERY file_id in your response
- Each file_id must appear in exactly ONE folder
- Do NOT skip any files
- If a file doesn't fit a category, put it in 'misc' or 'other'
- Total files in your response must equal %d

Propose an organization plan. Return JSON only.`, instruction, len(files), summary, len(files))
	} else {
		user = fmt.Sprintf(`User instruction: %q

Files to organize (%d total):
%s

REMEMBER: Use ONLY the exact numeric IDs shown above (the number after "id:"). Do NOT invent IDs!

Propose an organization plan. Return JSON only.`, instruction, len(files), summary)
	}

	return []Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: user},
	}
}

// buildFileSummary renders one line of metadata per file. Only the first
// maxSummaryFiles files are listed; the rest are acknowledged with a count
// so the planner knows the list is truncated.
func buildFileSummary(files []models.FileSummary) string {
	var b strings.Builder
	for i, f := range files {
		if i >= maxSummaryFiles {
			break
		}
		if i > 0 {
			b.WriteByte('\n')
		}
		name := truncate(f.Name, maxSummaryName)
		tags := f.Tags
		if len(tags) > maxSummaryTags {
			tags = tags[:maxSummaryTags]
		}
		fmt.Fprintf(&b, "id:%d | %s | label:%s | tags:[%s]", f.ID, name, f.Label, strings.Join(tags, ", "))
		if caption := truncate(f.Caption, maxSummaryCaption); caption != "" {
			fmt.Fprintf(&b, " | caption:%s", caption)
		}
	}
	if len(files) > maxSummaryFiles {
		fmt.Fprintf(&b, "\n... and %d more files", len(files)-maxSummaryFiles)
	}
	return b.String()
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
