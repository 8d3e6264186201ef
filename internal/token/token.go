// Package token counts tokens in generated artifacts and suggests
// reductions against a soft budget. The tokenizer is cl100k_base — a
// documented contract, so cost estimates agree with the agent ecosystem.
package token

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"github.com/HendryAvila/cwa/internal/cwerr"
)

// EncodingName is the documented tokenizer identifier.
const EncodingName = "cl100k_base"

var (
	encodingOnce sync.Once
	encoding     *tiktoken.Tiktoken
	encodingErr  error
)

func encoder() (*tiktoken.Tiktoken, error) {
	encodingOnce.Do(func() {
		encoding, encodingErr = tiktoken.GetEncoding(EncodingName)
	})
	if encodingErr != nil {
		return nil, cwerr.Wrap(cwerr.Internal, encodingErr, "loading %s tokenizer", EncodingName)
	}
	return encoding, nil
}

// Count returns the token count of a text.
func Count(text string) (int, error) {
	enc, err := encoder()
	if err != nil {
		return 0, err
	}
	return len(enc.Encode(text, nil, nil)), nil
}

// FileCount is the analysis of one file or content source.
type FileCount struct {
	Source     string `json:"source"`
	Tokens     int    `json:"tokens"`
	Characters int    `json:"characters"`
	Lines      int    `json:"lines"`
}

// AnalyzeText counts a string under a source label.
func AnalyzeText(source, content string) (FileCount, error) {
	tokens, err := Count(content)
	if err != nil {
		return FileCount{}, err
	}
	return FileCount{
		Source:     source,
		Tokens:     tokens,
		Characters: len(content),
		Lines:      strings.Count(content, "\n"),
	}, nil
}

// AnalyzeFile counts a file on disk.
func AnalyzeFile(path string) (FileCount, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return FileCount{}, cwerr.Wrap(cwerr.NotFound, err, "reading %s", path)
	}
	return AnalyzeText(path, string(data))
}

// AnalyzeProject counts every generated context artifact under a project
// root: CLAUDE.md, .claude/agents, .claude/skills/*/SKILL.md,
// .claude/commands, .claude/rules.
func AnalyzeProject(projectRoot string) ([]FileCount, error) {
	var counts []FileCount

	claudeMD := filepath.Join(projectRoot, "CLAUDE.md")
	if _, err := os.Stat(claudeMD); err == nil {
		count, err := AnalyzeFile(claudeMD)
		if err != nil {
			return nil, err
		}
		counts = append(counts, count)
	}

	for _, dir := range []string{"agents", "commands", "rules"} {
		pattern := filepath.Join(projectRoot, ".claude", dir, "*.md")
		matches, _ := filepath.Glob(pattern)
		for _, path := range matches {
			count, err := AnalyzeFile(path)
			if err != nil {
				return nil, err
			}
			counts = append(counts, count)
		}
	}

	skillFiles, _ := filepath.Glob(filepath.Join(projectRoot, ".claude", "skills", "*", "SKILL.md"))
	for _, path := range skillFiles {
		count, err := AnalyzeFile(path)
		if err != nil {
			return nil, err
		}
		counts = append(counts, count)
	}
	return counts, nil
}
