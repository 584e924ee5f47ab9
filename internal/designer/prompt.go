// Copyright (c) 2025 Open Swarm Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

package designer

import (
	"fmt"
	"strings"

	"autoswarm/internal/tools"
)

const noExternalTools = "No external tools available. Agents will use built-in context_read, context_write, file_read, file_write tools."

const responseShape = `{
  "todos": [
    {
      "description": "string - what needs to be done",
      "dependencies": ["string[] - descriptions of todos this depends on, empty for first tasks"],
      "parallelizable": true/false
    }
  ],
  "agents": [
    {
      "name": "string - short agent name like 'Researcher' or 'Writer'",
      "role": "string - one of: researcher, coder, reviewer, coordinator, writer, analyst",
      "skill": "string - detailed system prompt describing the agent's capabilities and instructions",
      "tools": ["string[] - tool names this agent needs"],
      "todoIndices": [0, 1],
      "dependsOn": ["string[] - names of agents this depends on"]
    }
  ]
}`

func describeTools(available []tools.Tool) string {
	if len(available) == 0 {
		return noExternalTools
	}
	lines := make([]string, 0, len(available))
	for _, t := range available {
		lines = append(lines, fmt.Sprintf("- %s: %s", t.Name, t.Description))
	}
	return strings.Join(lines, "\n")
}

func designSystemPrompt(available []tools.Tool) string {
	return fmt.Sprintf(`You are an expert multi-agent system designer. Given a task description, you must:
1. Break it down into a todo list with dependencies
2. Design a team of AI agents to accomplish the todos
3. Define each agent's role and skill description

Available external tools:
%s

Built-in tools always available: context_read, context_write, file_read, file_write

Respond with a JSON object with this exact structure:
%s

Design tips:
- Identify tasks that can run in parallel
- Each agent should have a clear, focused responsibility
- Create 2-6 agents depending on task complexity
- Simple tasks may only need 2 agents, complex ones need more`, describeTools(available), responseShape)
}

func refineSystemPrompt(currentJSON string, available []tools.Tool) string {
	return fmt.Sprintf(`You are an expert multi-agent system designer. You are given an existing multi-agent swarm design and a user request to modify it.

Current design:
%s

Available external tools:
%s

Built-in tools always available: context_read, context_write, file_read, file_write

Based on the user's modification request, output the COMPLETE updated design as JSON with this exact structure:
%s

Important:
- Incorporate the user's requested changes
- Keep unchanged parts as they are
- Output the COMPLETE design, not just the changes`, currentJSON, describeTools(available), responseShape)
}

func designUserPrompt(task string) string {
	return "Design a multi-agent swarm for this task:\n\n" + task
}

func refineUserPrompt(request string) string {
	return "Please modify the swarm design as follows:\n\n" + request
}
