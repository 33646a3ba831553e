package summarize

import (
	"fmt"
	"strings"

	"github.com/lectio/lectio/internal/chunk"
)

const narrativeSystemPrompt = `You are an expert academic note-taker. You turn raw lecture
transcripts into clear, well-structured Markdown study notes. You preserve the lecturer's
terminology, correct obvious transcription slips, and never invent material that is not in
the transcript. Structure your notes with "## " section headings.`

const guideSystemPrompt = `You are an academic assistant that extracts actionable items from
lecture notes. You respond with a single JSON object and nothing else. Every field is a JSON
array of short strings; use an empty array when a category has no entries. The fields are:
"mission_control" (one-line session summary points), "key_concepts", "assignments",
"study_theory", "study_practice", "study_admin", "exam_intel", "risk_followups",
"next_moves". Do not add fields, comments, or surrounding prose.`

const recapSystemPrompt = `You are a friendly study companion. You retell lecture content as a
short conversational recap a student could read on the bus, in Markdown. Keep it concrete and
faithful to the notes; no filler enthusiasm.`

// narrativePrompt builds the per-chunk prompt for the notes pass. The first
// chunk opens the document; later chunks continue it, carrying the most
// recent section headings so the structure stays coherent across chunks.
func narrativePrompt(c chunk.Chunk, courseName string, recentHeadings []string) string {
	var b strings.Builder

	if courseName != "" {
		fmt.Fprintf(&b, "Course: %s\n\n", courseName)
	}

	if c.Index == 0 {
		fmt.Fprintf(&b, "Below is part %d of %d of a lecture transcript. ", c.Index+1, c.Total)
		b.WriteString("Write the opening of a structured Markdown notes document for it. ")
		b.WriteString("Start with a short introduction of what the lecture covers, then work through the material in order.\n")
	} else {
		fmt.Fprintf(&b, "Below is part %d of %d of a lecture transcript. ", c.Index+1, c.Total)
		b.WriteString("Continue the existing notes document seamlessly: do not repeat an introduction, ")
		b.WriteString("do not summarize what came before, and do not restart numbering. ")
		b.WriteString("The transcript part may begin with a few sentences you already covered; skip past them.\n")
		if len(recentHeadings) > 0 {
			b.WriteString("\nThe most recent section headings in the notes so far:\n")
			for _, h := range recentHeadings {
				fmt.Fprintf(&b, "- %s\n", h)
			}
		}
	}

	b.WriteString("\nTranscript:\n\"\"\"\n")
	b.WriteString(c.Text)
	b.WriteString("\n\"\"\"\n")
	return b.String()
}

// guidePrompt builds the per-chunk prompt for the structured guide pass.
// The transcript chunk is the primary input; the notes already written for
// the same chunk are supplementary context, so details the notes pass
// dropped can still surface in the guide.
func guidePrompt(c chunk.Chunk, courseName, narrative string) string {
	var b strings.Builder

	if courseName != "" {
		fmt.Fprintf(&b, "Course: %s\n\n", courseName)
	}
	fmt.Fprintf(&b, "Below is part %d of %d of a lecture transcript, ", c.Index+1, c.Total)
	b.WriteString("followed by the study notes already written for it. ")
	b.WriteString("Extract the actionable items into the JSON schema. ")
	b.WriteString("Work from the transcript; use the notes to resolve terminology. ")
	b.WriteString("Only include assignments, deadlines, and exam hints the lecturer actually stated.\n")

	b.WriteString("\nTranscript:\n\"\"\"\n")
	b.WriteString(c.Text)
	b.WriteString("\n\"\"\"\n")
	b.WriteString("\nNotes for the same part:\n\"\"\"\n")
	b.WriteString(narrative)
	b.WriteString("\n\"\"\"\n")
	return b.String()
}

// recapPrompt builds the per-chunk prompt for the recap pass. rolling is the
// semicolon-joined context of recently covered topics; empty for the first
// chunk.
func recapPrompt(c chunk.Chunk, courseName, narrative, rolling string) string {
	var b strings.Builder

	if courseName != "" {
		fmt.Fprintf(&b, "Course: %s\n\n", courseName)
	}
	fmt.Fprintf(&b, "Write a conversational recap of segment %d of %d of a lecture, ", c.Index+1, c.Total)
	fmt.Fprintf(&b, "based on the transcript below and the study notes written for it. ")
	fmt.Fprintf(&b, "Start it with the heading \"## Segment %d\".\n", c.Index+1)
	if rolling != "" {
		fmt.Fprintf(&b, "\nTopics already recapped: %s\n", rolling)
		b.WriteString("Do not retell those; pick up where they left off.\n")
	}

	b.WriteString("\nTranscript:\n\"\"\"\n")
	b.WriteString(c.Text)
	b.WriteString("\n\"\"\"\n")
	b.WriteString("\nNotes for the same segment:\n\"\"\"\n")
	b.WriteString(narrative)
	b.WriteString("\n\"\"\"\n")
	return b.String()
}
