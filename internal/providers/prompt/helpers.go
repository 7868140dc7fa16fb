package prompt

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const systemPrompt = `You are an expert at creating detailed prompts for AI video generation, specifically for manifestation and visualization videos.

Your task: Transform a simple user goal into a detailed, cinematic video prompt that will help them visualize achieving their goal.

Guidelines:
- Keep the user's core goal exactly as stated
- Add cinematic details: camera angles, lighting, emotions, setting
- Focus on success, achievement, and positive visualization
- Make it inspiring and motivational
- Use professional cinematography language

Example:
Input: "me surfing a big wave"
Output: "Create a cinematic 20-second video of a person surfing a massive wave. Golden hour lighting, dramatic slow-motion as they ride the wave crest. Show determination and joy on their face. Professional surf cinematography with drone shots. Water spray glistening in sunlight. Triumphant success moment as they complete the ride."

Respond with the enhanced prompt only.`

const goalSubjectPrefix = "me "

var (
	thinkBlock   = regexp.MustCompile(`(?is)<think>.*?(</think>|$)`)
	answerLabel  = regexp.MustCompile(`(?i)^(enhanced prompt|output)\s*:\s*`)
	whitespaceRE = regexp.MustCompile(`\s+`)
)

// normalizeGoal collapses whitespace and makes the goal first-person by
// prefixing "me " unless the user already did.
func normalizeGoal(goal string) string {
	goal = collapseWhitespace(goal)
	if goal == "" {
		return ""
	}
	if strings.HasPrefix(lower(goal), goalSubjectPrefix) {
		return goal
	}
	return goalSubjectPrefix + goal
}

// subjectPhrase drops the first-person marker so the goal reads after
// "a person".
func subjectPhrase(goal string) string {
	if len(goal) >= len(goalSubjectPrefix) && lower(goal[:len(goalSubjectPrefix)]) == goalSubjectPrefix {
		return strings.TrimSpace(goal[len(goalSubjectPrefix):])
	}
	return goal
}

// lower builds a fresh Caser per call; Casers carry state and are not safe
// for concurrent use.
func lower(s string) string {
	return cases.Lower(language.Und).String(s)
}

func buildInstruction(goal string) string {
	return systemPrompt + "\n\n" + userTurn(goal) + "\n\nEnhanced prompt:"
}

// cleanModelOutput strips reasoning blocks, labels and wrapping quotes from
// a model answer.
func cleanModelOutput(raw string) string {
	text := thinkBlock.ReplaceAllString(raw, "")
	text = trimCodeFence(text)
	text = collapseWhitespace(text)
	text = answerLabel.ReplaceAllString(text, "")
	text = strings.Trim(text, "\"'` ")
	return text
}

func collapseWhitespace(s string) string {
	return strings.TrimSpace(whitespaceRE.ReplaceAllString(s, " "))
}

func coalesce(values ...string) string {
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v != "" {
			return v
		}
	}
	return ""
}

func trimCodeFence(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```text")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSpace(trimmed)
	if idx := strings.LastIndex(trimmed, "```"); idx >= 0 {
		trimmed = trimmed[:idx]
	}
	return strings.TrimSpace(trimmed)
}
