package analyzer

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// maxPromptContent caps how much file content is embedded in a prompt.
const maxPromptContent = 4000

// allowedExtensions are the file types that can be analyzed as text.
var allowedExtensions = map[string]bool{
	"txt": true, "md": true, "json": true, "csv": true,
	"js": true, "py": true, "html": true, "css": true,
}

// SupportedExtension reports whether files with this extension can be
// summarized.
func SupportedExtension(ext string) bool {
	return allowedExtensions[strings.ToLower(ext)]
}

// Extension extracts the lower-cased extension of a filename, without dot.
func Extension(filename string) string {
	i := strings.LastIndex(filename, ".")
	if i < 0 || i == len(filename)-1 {
		return ""
	}
	return strings.ToLower(filename[i+1:])
}

// BuildPrompt composes the analysis prompt for a file's content, varying the
// instruction by file type.
func BuildPrompt(filename, content string) string {
	if len(content) > maxPromptContent {
		cut := maxPromptContent
		// Back off to a rune boundary so the cap never splits a multi-byte
		// character.
		for cut > 0 && !utf8.RuneStart(content[cut]) {
			cut--
		}
		content = content[:cut]
	}
	ext := Extension(filename)
	switch ext {
	case "txt", "md", "json":
		return fmt.Sprintf("Please summarize this %s file in clear, natural English as if you're describing it to a team. Avoid lists, asterisks, or Markdown symbols. Use complete sentences and paragraph structure. Be concise and human-readable:\n\n%s",
			strings.ToUpper(ext), content)
	case "csv":
		return fmt.Sprintf("Please analyze this CSV data. Describe the structure, identify key columns, and provide insights about the data:\n\n%s", content)
	case "js", "py", "html", "css":
		return fmt.Sprintf("Please explain what this %s code does, as if you were describing it to a software engineering team. Provide key insights and main points, use natural English. Avoid lists, asterisks, or Markdown symbols. Use complete sentences and paragraph structure. Be concise and human-readable:\n\n%s",
			strings.ToUpper(ext), content)
	default:
		return fmt.Sprintf("Please analyze and explain the content of this file (%s). Extract key information and provide a comprehensive summary:\n\n%s", filename, content)
	}
}

var (
	markupChars    = regexp.MustCompile("[*_~`]+")
	numberedPrefix = regexp.MustCompile(`(?m)^\d+\.\s*`)
	colonSpace     = regexp.MustCompile(`:\s*`)
	multiSpace     = regexp.MustCompile(`\s{2,}`)
)

// CleanSummary strips model markup artifacts so cached summaries read as
// plain prose and feed cleanly into text-to-speech.
func CleanSummary(s string) string {
	s = markupChars.ReplaceAllString(s, "")
	s = numberedPrefix.ReplaceAllString(s, "")
	s = colonSpace.ReplaceAllString(s, ". ")
	s = multiSpace.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}
