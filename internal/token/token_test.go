package token

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCount_Basic(t *testing.T) {
	n, err := Count("hello world")
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if n != 2 {
		t.Errorf("tokens = %d, want 2", n)
	}
	zero, _ := Count("")
	if zero != 0 {
		t.Errorf("empty = %d, want 0", zero)
	}
}

func TestAnalyzeText(t *testing.T) {
	count, err := AnalyzeText("test.md", "line one\nline two\n")
	if err != nil {
		t.Fatalf("AnalyzeText failed: %v", err)
	}
	if count.Source != "test.md" {
		t.Errorf("Source = %s", count.Source)
	}
	if count.Lines != 2 {
		t.Errorf("Lines = %d, want 2", count.Lines)
	}
	if count.Tokens == 0 {
		t.Error("Tokens = 0")
	}
}

func TestAnalyzeProject(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "CLAUDE.md"), []byte("# Project\n\nContext file body.\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	agentsDir := filepath.Join(root, ".claude", "agents")
	if err := os.MkdirAll(agentsDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(agentsDir, "auth-expert.md"), []byte("# Auth Expert\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	skillDir := filepath.Join(root, ".claude", "skills", "login")
	if err := os.MkdirAll(skillDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(skillDir, "SKILL.md"), []byte("# Login skill\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	counts, err := AnalyzeProject(root)
	if err != nil {
		t.Fatalf("AnalyzeProject failed: %v", err)
	}
	if len(counts) != 3 {
		t.Errorf("counts = %d, want 3 (CLAUDE.md, agent, skill)", len(counts))
	}
}

func TestOptimize_WithinBudget(t *testing.T) {
	counts := []FileCount{{Source: "a.md", Tokens: 100}, {Source: "b.md", Tokens: 200}}
	report := Optimize(counts, 1000)
	if report.OverBudget {
		t.Error("within budget must not flag")
	}
	if report.TotalTokens != 300 {
		t.Errorf("total = %d", report.TotalTokens)
	}
	if len(report.Suggestions) != 0 {
		t.Errorf("suggestions = %v", report.Suggestions)
	}
}

func TestOptimize_OverBudgetRanksBySavings(t *testing.T) {
	counts := []FileCount{
		{Source: "big.md", Tokens: 6000, Lines: 300},
		{Source: "small.md", Tokens: 100, Lines: 20},
	}
	report := Optimize(counts, 4000)
	if !report.OverBudget {
		t.Fatal("must flag over budget")
	}
	if len(report.Suggestions) == 0 {
		t.Fatal("expected suggestions")
	}
	if report.Suggestions[0].Source != "big.md" {
		t.Errorf("top suggestion = %s, want big.md", report.Suggestions[0].Source)
	}
	for i := 1; i < len(report.Suggestions); i++ {
		if report.Suggestions[i].EstimatedSavings > report.Suggestions[i-1].EstimatedSavings {
			t.Error("suggestions not sorted by savings")
		}
	}
}

func TestSuggestForContent_DuplicateLines(t *testing.T) {
	dup := "this exact sentence is repeated often enough\n"
	content := strings.Repeat(dup, 5)
	suggestions, err := SuggestForContent("x.md", content)
	if err != nil {
		t.Fatalf("SuggestForContent failed: %v", err)
	}
	found := false
	for _, s := range suggestions {
		if strings.Contains(s.Action, "duplicate") {
			found = true
		}
	}
	if !found {
		t.Errorf("no duplicate-line suggestion in %v", suggestions)
	}
}

func TestSimilarSources(t *testing.T) {
	if !similarSources(".claude/agents/auth-expert.md", ".claude/agents/auth-core.md") {
		t.Error("same-dir shared-prefix files must match")
	}
	if similarSources(".claude/agents/auth.md", ".claude/rules/auth.md") {
		t.Error("different directories must not match")
	}
}
