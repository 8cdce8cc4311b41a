package mcpserver

// TranscriptFormat describes the Markdown produced by read_session and by
// the export command.
const TranscriptFormat = `# Marginalia Transcript Format

Each saved AI conversation about a PDF selection is rendered as one Markdown
document.

## Structure

` + "```" + `markdown
---
session_id: 12                     # session identifier
document: 4f1c...                  # document content hash
highlight_id: 7                    # omitted when the session has no highlight
title: Attention Is All You Need   # document title, when known
file_name: attention.pdf
question: What does this mean?
created_at: "2024-03-01T12:00:01.000000Z"
updated_at: "2024-03-01T12:00:04.000000Z"
---

# Attention Is All You Need

> the highlighted selection, quoted line by line

## Context

Text surrounding the selection on its page.

## Question

What does this mean?

## Answer

The assistant reply.
` + "```" + `

## Rules

1. Turns appear in the order they were stored, oldest first.
2. ` + "`" + `Question` + "`" + ` headings are user turns and ` + "`" + `Answer` + "`" + ` headings are assistant turns.
3. A session whose turns were never recorded shows its answer preview under
   an ` + "`" + `Assistant` + "`" + ` heading.
4. Timestamps are UTC and sort lexically.
`
