package qa

import (
	"fmt"
	"strings"

	"med-kg-qa-api/internal/domain/entity"
)

// ragSystemPrompt 混合检索生成路径的系统提示
const ragSystemPrompt = `你是一名医疗问答助手，基于给定的「参考资料」回答用户问题。

规则：
1. 回答必须基于参考资料，资料中没有的内容不要编造。
2. 明确区分「来自知识图谱」与「来自文献」的信息。
3. 涉及诊疗建议时请提示「仅供参考，请遵医嘱」。
4. 若参考资料为空或与问题无关，请坦率说明无法回答，并建议用户换一种问法。`

// buildRAGPrompt 把检索上下文与问题拼装为用户消息
// maxContextChars 限制上下文长度（按 rune 计），超出部分截断
func buildRAGPrompt(question string, items []entity.RetrievalItem, maxContextChars int) string {
	var sb strings.Builder
	sb.WriteString("参考资料：\n")
	if len(items) == 0 {
		sb.WriteString("（无）\n")
	}
	for i, it := range items {
		line := fmt.Sprintf("%d. [%s] %s\n", i+1, it.Label, it.Payload)
		if maxContextChars > 0 {
			remaining := maxContextChars - len([]rune(sb.String()))
			if remaining <= 0 {
				break
			}
			if r := []rune(line); len(r) > remaining {
				line = string(r[:remaining]) + "\n"
			}
		}
		sb.WriteString(line)
	}
	sb.WriteString("\n问题：")
	sb.WriteString(question)
	return sb.String()
}
