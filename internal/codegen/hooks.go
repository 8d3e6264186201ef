package codegen

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/HendryAvila/cwa/internal/cwerr"
)

// hookEntry mirrors the hooks.json object shape: a matcher plus the
// commands to run.
type hookEntry struct {
	Matcher string        `json:"matcher"`
	Hooks   []hookCommand `json:"hooks"`
}

type hookCommand struct {
	Type    string `json:"type"`
	Command string `json:"command"`
}

func commandHook(matcher, command string) hookEntry {
	return hookEntry{Matcher: matcher, Hooks: []hookCommand{{Type: "command", Command: command}}}
}

// hooksFile generates .claude/hooks.json: a destructive-command guard,
// observation capture on writes, per-stack formatters, a context echo on
// prompt submit, and an in-flight-work reminder on stop. Domain
// invariants surface as PreToolUse echo checks.
func (p *Pipeline) hooksFile(ctx context.Context, project string, techStack []string) (Artifact, error) {
	stack := make(map[string]bool, len(techStack))
	for _, tag := range techStack {
		stack[strings.ToLower(tag)] = true
	}

	preToolUse := []hookEntry{
		commandHook("Bash",
			`echo "$CLAUDE_TOOL_INPUT" | grep -qE '(rm -rf /|DROP TABLE|git push.*--force.*main)' && exit 2 || exit 0`),
	}

	// Domain invariants become visible pre-write checks.
	contexts, err := p.store.ListContexts(ctx, project)
	if err != nil {
		return Artifact{}, err
	}
	for _, bc := range contexts {
		objects, err := p.store.ListDomainObjects(ctx, project, bc.ID)
		if err != nil {
			return Artifact{}, err
		}
		for _, obj := range objects {
			for _, invariant := range obj.Invariants {
				preToolUse = append(preToolUse, commandHook("Bash",
					fmt.Sprintf("echo 'Domain invariant check [%s - %s]: %s'", bc.Name, obj.Name, invariant)))
			}
		}
	}

	postToolUse := []hookEntry{
		commandHook("Write",
			`cwa memory observe "File created: $CLAUDE_TOOL_INPUT_FILE_PATH" --kind change --files-modified "$CLAUDE_TOOL_INPUT_FILE_PATH" 2>/dev/null || true`),
		commandHook("Edit|MultiEdit",
			`cwa memory observe "File modified: $CLAUDE_TOOL_INPUT_FILE_PATH" --kind change --files-modified "$CLAUDE_TOOL_INPUT_FILE_PATH" 2>/dev/null || true`),
	}
	if stack["rust"] {
		postToolUse = append(postToolUse, commandHook("Edit",
			`case "$CLAUDE_TOOL_INPUT_FILE_PATH" in *.rs) cargo fmt -- "$CLAUDE_TOOL_INPUT_FILE_PATH" 2>/dev/null || true ;; esac`))
	}
	if stack["go"] || stack["golang"] {
		postToolUse = append(postToolUse, commandHook("Edit",
			`case "$CLAUDE_TOOL_INPUT_FILE_PATH" in *.go) gofmt -w "$CLAUDE_TOOL_INPUT_FILE_PATH" 2>/dev/null || true ;; esac`))
	}
	if stack["typescript"] || stack["react"] || stack["nextjs"] || stack["next.js"] {
		postToolUse = append(postToolUse, commandHook("Edit",
			`case "$CLAUDE_TOOL_INPUT_FILE_PATH" in *.ts|*.tsx|*.js|*.jsx) prettier --write "$CLAUDE_TOOL_INPUT_FILE_PATH" 2>/dev/null || true ;; esac`))
	}
	if stack["python"] {
		postToolUse = append(postToolUse, commandHook("Edit",
			`case "$CLAUDE_TOOL_INPUT_FILE_PATH" in *.py) black "$CLAUDE_TOOL_INPUT_FILE_PATH" 2>/dev/null || true ;; esac`))
	}

	userPromptSubmit := []hookEntry{
		commandHook("", `cwa context status 2>/dev/null || true`),
	}
	stop := []hookEntry{
		commandHook("", `cwa task list --status in_progress 2>/dev/null || true`),
	}

	config := map[string]map[string][]hookEntry{
		"hooks": {
			"PreToolUse":       preToolUse,
			"PostToolUse":      postToolUse,
			"UserPromptSubmit": userPromptSubmit,
			"Stop":             stop,
		},
	}
	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return Artifact{}, cwerr.Wrap(cwerr.Internal, err, "marshaling hooks config")
	}
	return Artifact{
		Path:    filepath.Join(".claude", "hooks.json"),
		Kind:    KindHooks,
		Content: string(data) + "\n",
	}, nil
}
