package analyzer

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestExtension(t *testing.T) {
	assert.Equal(t, "txt", Extension("notes.txt"))
	assert.Equal(t, "json", Extension("data.backup.JSON"))
	assert.Equal(t, "", Extension("README"))
	assert.Equal(t, "", Extension("trailingdot."))
}

func TestSupportedExtension(t *testing.T) {
	for _, ext := range []string{"txt", "md", "json", "csv", "js", "py", "html", "css"} {
		assert.True(t, SupportedExtension(ext), ext)
	}
	assert.False(t, SupportedExtension("exe"))
	assert.False(t, SupportedExtension("png"))
}

func TestBuildPromptVariesByType(t *testing.T) {
	text := BuildPrompt("notes.txt", "hello")
	assert.Contains(t, text, "summarize this TXT file")
	assert.Contains(t, text, "hello")

	csv := BuildPrompt("data.csv", "a,b,c")
	assert.Contains(t, csv, "CSV data")

	code := BuildPrompt("main.py", "print(1)")
	assert.Contains(t, code, "PY code")
}

func TestBuildPromptCapsContent(t *testing.T) {
	long := strings.Repeat("x", maxPromptContent*2)
	prompt := BuildPrompt("notes.txt", long)
	assert.Less(t, len(prompt), maxPromptContent+200)
}

func TestBuildPromptCapsOnRuneBoundary(t *testing.T) {
	// Place a run of 3-byte runes across the cap so a byte-offset cut would
	// split one mid-sequence.
	long := strings.Repeat("x", maxPromptContent-1) + strings.Repeat("日", 10)
	prompt := BuildPrompt("notes.txt", long)

	assert.True(t, utf8.ValidString(prompt))
	assert.Less(t, len(prompt), maxPromptContent+200)
}

func TestCleanSummary(t *testing.T) {
	in := "**Summary**. Here are points:\n1. first\n2. second  with   gaps\n`code`"
	out := CleanSummary(in)
	assert.NotContains(t, out, "*")
	assert.NotContains(t, out, "`")
	assert.NotContains(t, out, "1.")
	assert.NotContains(t, out, "  ")
	assert.NotContains(t, out, ":")
}
