// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cerebro Contributors

package qa

import (
	"strings"

	"github.com/cerebro-notes/cerebro/internal/retrieve"
)

const promptTemplate = `You are a personal assistant answering questions based EXCLUSIVELY on the user's notes provided in the context below.

Rules:
1. If asked for a specific passage, quote it EXACTLY as written. Do not summarise, censor, or reword it.
2. If the answer is not in the context, say "I could not find this in your notes".
3. Format your answer in Markdown.
4. Be direct.

Context:
%CONTEXT%

Question: %QUESTION%
`

// BuildPrompt renders the fixed two-slot template: the formatted context
// and the question.
func BuildPrompt(question string, context []retrieve.Candidate) string {
	prompt := strings.Replace(promptTemplate, "%CONTEXT%", FormatContext(context), 1)
	return strings.Replace(prompt, "%QUESTION%", question, 1)
}

// FormatContext renders each candidate as a "--- From: <path> ---" block,
// joined by blank lines.
func FormatContext(context []retrieve.Candidate) string {
	if len(context) == 0 {
		return "(no notes matched)"
	}

	blocks := make([]string, len(context))
	for i, c := range context {
		blocks[i] = "--- From: " + c.Source + " ---\n" + c.Text
	}
	return strings.Join(blocks, "\n\n")
}
