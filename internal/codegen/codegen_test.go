package codegen

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/HendryAvila/cwa/internal/store"
)

func newTestPipeline(t *testing.T) (*Pipeline, *store.Store) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	s := store.NewWithClient(rdb)
	return New(s), s
}

// seedProject builds the spec's codegen-determinism scenario: tech_stack
// ["rust","axum","neo4j"] and one bounded context "Auth".
func seedProject(t *testing.T, s *store.Store) {
	t.Helper()
	ctx := context.Background()
	if _, err := s.CreateProject(ctx, "demo", "Demo", "A demo project", []string{"rust", "axum", "neo4j"}); err != nil {
		t.Fatal(err)
	}
	bc, err := s.CreateContext(ctx, "demo", "Auth", "authentication and identity")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.CreateDomainObject(ctx, "demo", store.CreateDomainObjectParams{
		ContextID: bc.ID, Kind: "aggregate", Name: "User",
		Invariants: []string{"email is unique"},
		Properties: []string{"id", "email"},
	}); err != nil {
		t.Fatal(err)
	}
	spec, err := s.CreateSpec(ctx, "demo", store.CreateSpecParams{
		Title: "Login", Priority: "high",
		AcceptanceCriteria: []string{"User can register", "User can login"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.UpdateSpec(ctx, "demo", spec.ID, func(sp store.Spec) (store.Spec, error) {
		sp.Status = "accepted"
		return sp, nil
	}); err != nil {
		t.Fatal(err)
	}
}

func TestGenerate_ProducesAllKinds(t *testing.T) {
	p, s := newTestPipeline(t)
	seedProject(t, s)

	artifacts, err := p.Generate(context.Background(), "demo")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	kinds := make(map[string]int)
	paths := make(map[string]bool)
	for _, a := range artifacts {
		kinds[a.Kind]++
		if paths[a.Path] {
			t.Errorf("duplicate path %s", a.Path)
		}
		paths[a.Path] = true
	}

	if kinds[KindAgent] == 0 {
		t.Error("no agent artifacts")
	}
	if kinds[KindSkill] == 0 {
		t.Error("no skill artifacts")
	}
	if kinds[KindCommand] == 0 {
		t.Error("no command artifacts")
	}
	if kinds[KindRule] == 0 {
		t.Error("no rule artifacts")
	}
	if kinds[KindHooks] != 1 || kinds[KindContext] != 1 || kinds[KindMCPConfig] != 1 {
		t.Errorf("singleton kinds = %v", kinds)
	}
	if !paths["CLAUDE.md"] {
		t.Error("CLAUDE.md missing")
	}
	if !paths[filepath.Join(".claude", "agents", "auth-expert.md")] {
		t.Error("context agent missing")
	}
	if !paths[filepath.Join(".claude", "skills", "login", "SKILL.md")] {
		t.Error("spec skill missing")
	}
}

// Two runs over the same state
// produce byte-identical output.
func TestGenerate_Deterministic(t *testing.T) {
	p, s := newTestPipeline(t)
	seedProject(t, s)
	ctx := context.Background()

	first, err := p.Generate(ctx, "demo")
	if err != nil {
		t.Fatalf("first Generate failed: %v", err)
	}
	second, err := p.Generate(ctx, "demo")
	if err != nil {
		t.Fatalf("second Generate failed: %v", err)
	}
	if len(first) != len(second) {
		t.Fatalf("artifact counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].Path != second[i].Path {
			t.Errorf("path[%d] = %s vs %s", i, first[i].Path, second[i].Path)
		}
		if first[i].Content != second[i].Content {
			t.Errorf("content differs for %s", first[i].Path)
		}
	}
}

func TestTechAgents_SelectionByStack(t *testing.T) {
	artifacts := techAgents([]string{"rust", "axum", "neo4j"})
	names := make(map[string]bool)
	for _, a := range artifacts {
		names[filepath.Base(a.Path)] = true
	}
	for _, want := range []string{"rust-expert.md", "axum-expert.md", "neo4j-expert.md", "ddd-expert.md", "tdd-expert.md"} {
		if !names[want] {
			t.Errorf("missing %s", want)
		}
	}
	if names["python-expert.md"] || names["react-expert.md"] {
		t.Error("unmatched stack personas must not generate")
	}
}

func TestSpecSkills_OnlyActiveOrAccepted(t *testing.T) {
	p, s := newTestPipeline(t)
	ctx := context.Background()
	_, _ = s.CreateProject(ctx, "demo", "Demo", "", nil)
	_, _ = s.CreateSpec(ctx, "demo", store.CreateSpecParams{Title: "Draft thing"})

	skills, err := p.specSkills(ctx, "demo")
	if err != nil {
		t.Fatalf("specSkills failed: %v", err)
	}
	if len(skills) != 0 {
		t.Errorf("draft specs must not produce skills: %v", skills)
	}
}

func TestSpecSkills_CriteriaVerbatim(t *testing.T) {
	p, s := newTestPipeline(t)
	seedProject(t, s)

	skills, err := p.specSkills(context.Background(), "demo")
	if err != nil || len(skills) != 1 {
		t.Fatalf("skills = %v, err = %v", skills, err)
	}
	for _, criterion := range []string{"1. User can register", "2. User can login"} {
		if !containsLine(skills[0].Content, criterion) {
			t.Errorf("skill missing criterion %q", criterion)
		}
	}
}

func TestHooksFile_StackSpecificFormatters(t *testing.T) {
	p, s := newTestPipeline(t)
	seedProject(t, s)

	hooks, err := p.hooksFile(context.Background(), "demo", []string{"rust", "axum"})
	if err != nil {
		t.Fatalf("hooksFile failed: %v", err)
	}
	if !containsLine(hooks.Content, "cargo fmt") {
		t.Error("rust stack must add a cargo fmt hook")
	}
	if containsLine(hooks.Content, "prettier") {
		t.Error("non-ts stack must not add prettier")
	}
	// Domain invariant surfaces as a pre-tool check.
	if !containsLine(hooks.Content, "email is unique") {
		t.Error("domain invariant missing from hooks")
	}
	for _, event := range []string{"PreToolUse", "PostToolUse", "UserPromptSubmit", "Stop"} {
		if !containsLine(hooks.Content, event) {
			t.Errorf("hooks.json missing %s", event)
		}
	}
}

func TestDryRun_MatchesApply(t *testing.T) {
	p, s := newTestPipeline(t)
	seedProject(t, s)
	ctx := context.Background()

	dry, err := p.DryRun(ctx, "demo")
	if err != nil {
		t.Fatalf("DryRun failed: %v", err)
	}

	root := t.TempDir()
	artifacts, err := p.Generate(ctx, "demo")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	applied, err := Apply(root, artifacts)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	var dryPaths []string
	for _, paths := range dry.Paths {
		dryPaths = append(dryPaths, paths...)
	}
	sort.Strings(dryPaths)
	written := append([]string(nil), applied.Written...)
	sort.Strings(written)

	if len(dryPaths) != len(written) {
		t.Fatalf("dry-run %d paths, apply wrote %d", len(dryPaths), len(written))
	}
	for i := range dryPaths {
		if dryPaths[i] != written[i] {
			t.Errorf("path mismatch: %s vs %s", dryPaths[i], written[i])
		}
	}

	// Everything actually exists on disk.
	for _, path := range written {
		if _, err := os.Stat(filepath.Join(root, path)); err != nil {
			t.Errorf("written path missing on disk: %s", path)
		}
	}
}

func TestApply_DoesNotTouchForeignFiles(t *testing.T) {
	p, s := newTestPipeline(t)
	seedProject(t, s)
	root := t.TempDir()

	foreign := filepath.Join(root, ".claude", "agents", "hand-written.md")
	if err := os.MkdirAll(filepath.Dir(foreign), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(foreign, []byte("mine"), 0o644); err != nil {
		t.Fatal(err)
	}

	artifacts, _ := p.Generate(context.Background(), "demo")
	if _, err := Apply(root, artifacts); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	data, err := os.ReadFile(foreign)
	if err != nil || string(data) != "mine" {
		t.Errorf("foreign file touched: %q, %v", data, err)
	}
	// Staging directory is cleaned up.
	entries, _ := os.ReadDir(root)
	for _, entry := range entries {
		if len(entry.Name()) > 12 && entry.Name()[:12] == ".cwa-staging" {
			t.Errorf("staging dir left behind: %s", entry.Name())
		}
	}
}

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"Auth":            "auth",
		"User Login Flow": "user-login-flow",
		"API (v2)!":       "api-v2",
	}
	for in, want := range cases {
		if got := slugify(in); got != want {
			t.Errorf("slugify(%q) = %q, want %q", in, got, want)
		}
	}
}

func containsLine(haystack, needle string) bool {
	return strings.Contains(haystack, needle)
}
