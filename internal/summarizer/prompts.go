package summarizer

import (
	"fmt"
	"strings"
)

const systemPrompt = "" +
	"You are a careful assistant that summarizes video transcripts. " +
	"Work only from the transcript provided by the user, never invent facts, " +
	"and answer in the transcript's language."

var stylePrompts = map[string]string{
	StyleComprehensive: "Write a flowing prose summary covering the main narrative, arguments and conclusions of the transcript.",
	StyleBulletPoints:  "Summarize the transcript as a flat list of markdown bullet points, one idea per bullet.",
	StyleKeyPoints:     "Extract only the most important takeaways as a short numbered list, ordered by significance.",
	StyleStructured:    "Produce a markdown document with the sections '## Overview', '## Key Points' and '## Conclusion'.",
}

// buildUserPrompt 组装用户侧提示词：风格指令 + 目标词数 + 原始转录。
func buildUserPrompt(text, style, length string) string {
	instruction, ok := stylePrompts[style]
	if !ok {
		instruction = stylePrompts[StyleComprehensive]
	}

	var builder strings.Builder
	builder.WriteString(instruction)
	builder.WriteString(fmt.Sprintf(" Aim for roughly %d words.\n\n", TargetWords(length)))
	builder.WriteString("Transcript:\n")
	builder.WriteString(strings.TrimSpace(text))
	return builder.String()
}
