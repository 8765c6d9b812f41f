package gateway

import (
	"encoding/json"
	"fmt"
	"strings"

	"worklog/api/internal/document"
)

// MaxHistoryTurns bounds how many prior turns reach the model.
const MaxHistoryTurns = 12

func systemPrompt(requirePatchFormat bool) string {
	var b strings.Builder
	b.WriteString("你是一个工作记录助手，帮助用户管理计时记录、每日计划、待办事项和问题洞察。\n")
	b.WriteString("你必须只输出一个 JSON 对象，不要使用 Markdown 代码块，也不要在 JSON 之外输出任何文字。\n")
	b.WriteString(`JSON 对象只能包含三个顶层字段："mode"、"message"、"patch"。` + "\n")
	b.WriteString(`"mode" 只能是 "readonly"（仅回答问题，不修改数据）或 "preview_patch"（提出对数据的修改）。` + "\n")
	b.WriteString(`"message" 是给用户看的简短说明。` + "\n")
	b.WriteString(`当 mode 为 "preview_patch" 时，"patch" 是一个对象，只能包含以下顶层键：`)
	b.WriteString(strings.Join(document.PatchKeys, ", "))
	b.WriteString("。\n")
	b.WriteString("patch 中出现的每个键都会整体替换对应字段（数组整体替换），未出现的键保持不变。\n")
	b.WriteString("禁止输出任何其他顶层键，禁止在 patch 中使用上述列表之外的键。\n")
	b.WriteString("时间字段使用 ISO-8601 格式（例如 2024-05-01T09:00:00.000Z），新条目的 id 使用 UUID。\n")
	if requirePatchFormat {
		b.WriteString(`用户要求修改数据时，必须使用 "preview_patch" 模式并给出 "patch"，不要只用文字描述修改。` + "\n")
	}
	return b.String()
}

// recentHistory keeps the last MaxHistoryTurns turns with non-blank content.
func recentHistory(history []Turn) []ChatMessage {
	kept := make([]ChatMessage, 0, len(history))
	for _, turn := range history {
		if strings.TrimSpace(turn.Content) == "" {
			continue
		}
		role := "user"
		if turn.Role == "assistant" {
			role = "assistant"
		}
		kept = append(kept, ChatMessage{Role: role, Content: turn.Content})
	}
	if len(kept) > MaxHistoryTurns {
		kept = kept[len(kept)-MaxHistoryTurns:]
	}
	return kept
}

func buildMessages(req Request) []ChatMessage {
	contextJSON := "{}"
	if len(req.Context) > 0 && json.Valid(req.Context) {
		contextJSON = string(req.Context)
	}
	messages := []ChatMessage{{Role: "system", Content: systemPrompt(req.RequirePatchFormat)}}
	messages = append(messages, recentHistory(req.History)...)
	messages = append(messages, ChatMessage{
		Role:    "user",
		Content: fmt.Sprintf("指令：\n%s\n\n当前数据（JSON）：\n%s", req.Instruction, contextJSON),
	})
	return messages
}
