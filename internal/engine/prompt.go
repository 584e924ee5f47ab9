// Copyright (c) 2025 Open Swarm Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

package engine

import (
	"fmt"
	"slices"
	"strings"

	"autoswarm/pkg/types"
)

const defaultAssignment = "Complete your designated role in the pipeline."

// buildAgentPrompt composes a node's system prompt from its skill text, the
// todos assigned to it, and the context keys available when it starts.
func buildAgentPrompt(node types.Node, todos []types.TodoItem, contextKeys []string) string {
	var sb strings.Builder

	sb.WriteString(node.SkillMarkdown)
	sb.WriteString("\n\n## Your Assigned Tasks\n")

	assigned := assignedTodos(node.ID, todos)
	if len(assigned) == 0 {
		sb.WriteString(defaultAssignment)
	} else {
		sb.WriteString(strings.Join(assigned, "\n"))
	}

	sb.WriteString("\n\n## Available Context Keys\n")
	sb.WriteString(strings.Join(contextKeys, ", "))

	sb.WriteString("\n\n## Instructions\n")
	fmt.Fprintf(&sb, "- Focus on your specific role: %s\n", node.Role)
	sb.WriteString("- Provide clear, structured output\n")
	sb.WriteString("- If you encounter issues, describe them clearly")

	return sb.String()
}

func assignedTodos(nodeID string, todos []types.TodoItem) []string {
	lines := make([]string, 0)
	for _, t := range todos {
		if slices.Contains(t.AssignedNodeIDs, nodeID) {
			lines = append(lines, "- "+t.Description)
		}
	}
	return lines
}

// buildUserMessage carries the task and the node's resolved inputs.
func buildUserMessage(task string, inputJSON []byte) string {
	return fmt.Sprintf("Task: %s\n\nYour input data:\n%s\n\nExecute your role and provide your output.", task, inputJSON)
}
