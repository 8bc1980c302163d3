package qa

import (
	"fmt"
	"strings"

	"med-kg-qa-api/internal/domain/entity"
)

// bulletList 把条目渲染为 Markdown 列表
func bulletList(items []entity.RetrievalItem) string {
	lines := make([]string, 0, len(items))
	for _, it := range items {
		lines = append(lines, "• "+it.Payload)
	}
	return strings.Join(lines, "\n")
}

// formatRuleAnswer 把结构化图谱命中渲染为固定模板回答
func formatRuleAnswer(intent entity.Intent, name string, result *entity.RetrievalResult) string {
	switch intent {
	case entity.IntentSymptom:
		return fmt.Sprintf("**%s** 的主要症状包括：\n\n%s", name, bulletList(result.Items))
	case entity.IntentTreatment:
		return fmt.Sprintf("**%s** 的治疗药物包括：\n\n%s\n\n⚠️ 请在医生指导下使用药物", name, bulletList(result.Items))
	case entity.IntentDepartment:
		return fmt.Sprintf("**%s** 建议就诊科室：**%s**", name, result.Items[0].Payload)
	case entity.IntentCause:
		if result.Items[0].Label == string(entity.EntityTypeDisease) {
			return fmt.Sprintf("出现 **%s** 可能是以下疾病的症状：\n\n%s\n\n⚠️ 建议及时就医确诊", name, bulletList(result.Items))
		}
		return fmt.Sprintf("**%s** 的常见病因：\n\n%s", name, result.Items[0].Payload)
	case entity.IntentDrugInfo:
		items := result.Items
		if items[0].Label == "description" {
			items = items[1:]
		}
		if len(items) == 0 {
			return fmt.Sprintf("**%s**：%s\n\n⚠️ 请遵医嘱使用", name, result.Items[0].Payload)
		}
		return fmt.Sprintf("**%s** 主要用于治疗：\n\n%s\n\n⚠️ 请遵医嘱使用", name, bulletList(items))
	default:
		return bulletList(result.Items)
	}
}

// fallbackAnswer 所有检索与生成路径均失败时的固定回答
func fallbackAnswer(question string) string {
	return fmt.Sprintf("抱歉，我无法理解您的问题：\"%s\"\n\n"+
		"💡 **您可以尝试这样提问：**\n\n"+
		"• \"高血压有什么症状？\"\n"+
		"• \"糖尿病怎么治疗？\"\n"+
		"• \"感冒应该看什么科？\"\n"+
		"• \"头痛可能是什么病？\"\n"+
		"• \"二甲双胍有什么作用？\"", question)
}
