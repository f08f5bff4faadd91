package training

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEvaluatePassword(t *testing.T) {
	empty := EvaluatePassword("")
	assert.Equal(t, 0, empty.Score)
	assert.Equal(t, "Very Weak", empty.Strength)

	weak := EvaluatePassword("password")
	assert.Equal(t, "Weak", weak.Strength)
	assert.Less(t, weak.Score, 40)
	assert.Contains(t, weak.Feedback, "Contains common word: 'password'")
	assert.Contains(t, weak.Feedback, "Only lowercase letters")
	assert.Contains(t, weak.Suggestions, "Use at least 12 characters")

	strong := EvaluatePassword("Tr0ub4dor&3xK!9q")
	assert.Equal(t, "Very Strong", strong.Strength)
	assert.GreaterOrEqual(t, strong.Score, 80)
	assert.Equal(t, 4, strong.CharTypes)
	assert.Equal(t, 16, strong.Length)

	seq := EvaluatePassword("Abc12345!")
	assert.Contains(t, seq.Feedback, "Contains sequential characters")
	assert.Less(t, seq.Score, strong.Score)
}

func TestEvaluatePassword_SummaryNeverContainsPassword(t *testing.T) {
	pw := "Sup3r$ecretPhrase"
	assert.NotContains(t, EvaluatePassword(pw).Summary(), pw)
}

func TestMaskPassword(t *testing.T) {
	assert.Equal(t, "", MaskPassword(""))
	assert.Equal(t, "*", MaskPassword("a"))
	assert.Equal(t, "**", MaskPassword("ab"))
	assert.Equal(t, "s****t", MaskPassword("secret"))
	assert.Equal(t, "h*****2", MaskPassword("hunter2"))
}
