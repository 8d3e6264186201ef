package codegen

import "path/filepath"

// builtinCommands are the static slash-command files shipped with every
// project.
func builtinCommands() []Artifact {
	commands := []struct {
		name    string
		content string
	}{
		{
			name: "generate-tasks",
			content: `# Generate Tasks

Turn a spec's acceptance criteria into kanban tasks.

1. Ask which spec to expand (or use the current one)
2. Call generate_tasks with the spec id
3. Report how many tasks were created — re-running skips criteria that
   already have a task
4. Show the backlog column so the user sees the new work
`,
		},
		{
			name: "project-status",
			content: `# Project Status

Summarize where the project stands.

1. Call get_project_info and get_wip_status
2. Call list_specs and group by status
3. Call get_current_task for what's in flight
4. Present a short digest: active specs, board occupancy, current work
`,
		},
		{
			name: "next-task",
			content: `# Next Task

Pick up the next piece of work.

1. Call get_next_steps
2. If a task is in_progress, continue it
3. Otherwise take the top of todo and move it to in_progress
4. If todo is empty, pull the next backlog task into todo (WIP permitting)
`,
		},
		{
			name: "kanban",
			content: `# Kanban

Show the board.

1. Call get_wip_status for occupancy per column
2. Call list_tasks and group by status in board order
3. Render columns with their WIP limits; flag any column at its limit
`,
		},
		{
			name: "wip-check",
			content: `# WIP Check

Audit work-in-progress limits.

1. Call get_wip_status
2. For every column at its limit, list the tasks in it
3. Suggest which task to finish or move back before starting new work
`,
		},
		{
			name: "sync",
			content: `# Sync

Reconcile the derived stores with the primary store.

1. Call graph_sync and report nodes/relationships written
2. A second run right after should write zero — if it doesn't, run it
   again and investigate the entity ids that keep changing
`,
		},
		{
			name: "observe",
			content: `# Observe

Record a development observation.

1. Summarize what just happened (bugfix, feature, discovery, decision)
2. Call observe with a kind, a short title, the narrative, and key facts
3. List files modified and read so future sessions can trace the change
`,
		},
	}

	artifacts := make([]Artifact, 0, len(commands))
	for _, cmd := range commands {
		artifacts = append(artifacts, Artifact{
			Path:    filepath.Join(".claude", "commands", cmd.name+".md"),
			Kind:    KindCommand,
			Content: cmd.content,
		})
	}
	return artifacts
}

// builtinRules are the static rule files shipped with every project.
func builtinRules() []Artifact {
	rules := []struct {
		name    string
		content string
	}{
		{
			name: "kanban-flow",
			content: `# Kanban Flow

- Move tasks through backlog → todo → in_progress → review → done
- Never exceed a column's WIP limit; the server rejects the move anyway
- done is terminal — re-open by moving back to in_progress or review
`,
		},
		{
			name: "ubiquitous-language",
			content: `# Ubiquitous Language

- Use glossary terms exactly as defined; one precise meaning per term
- New domain words get a glossary entry before they appear in code
- Bounded contexts own their vocabulary; cross-context terms are explicit
`,
		},
		{
			name: "memory-hygiene",
			content: `# Memory Hygiene

- Record observations as you work, not after the fact
- Browse with the timeline first; fetch full records only when needed
- Let confidence decay and compaction age out stale knowledge
`,
		},
	}

	artifacts := make([]Artifact, 0, len(rules))
	for _, rule := range rules {
		artifacts = append(artifacts, Artifact{
			Path:    filepath.Join(".claude", "rules", rule.name+".md"),
			Kind:    KindRule,
			Content: rule.content,
		})
	}
	return artifacts
}
