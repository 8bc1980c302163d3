package nlu

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"med-kg-qa-api/internal/domain/entity"
)

func TestIntentClassifier_Classify(t *testing.T) {
	c := NewIntentClassifier()

	cases := []struct {
		text string
		want entity.Intent
	}{
		{"高血压有什么症状？", entity.IntentSymptom},
		{"糖尿病怎么治疗", entity.IntentTreatment},
		{"感冒应该挂什么科", entity.IntentDepartment},
		{"头痛可能是什么病", entity.IntentCause},
		{"阿司匹林有什么副作用", entity.IntentDrugInfo},
		{"今天天气不错", entity.IntentUnknown},
		{"", entity.IntentUnknown},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, c.Classify(tc.text), "text=%s", tc.text)
	}
}

func TestIntentClassifier_FirstMatchWins(t *testing.T) {
	c := NewIntentClassifier()

	// 同时命中症状与治疗规则时，症状优先
	assert.Equal(t, entity.IntentSymptom, c.Classify("高血压有什么症状，怎么治疗"))
	// 同时命中治疗与药物规则时，治疗优先
	assert.Equal(t, entity.IntentTreatment, c.Classify("糖尿病吃什么药，药物有禁忌吗"))
}

func TestIntentClassifier_Deterministic(t *testing.T) {
	c := NewIntentClassifier()
	text := "高血压有什么症状？"

	first := c.Classify(text)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, c.Classify(text))
	}
}
