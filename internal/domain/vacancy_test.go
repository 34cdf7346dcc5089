package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSkillListDecodesBothEncodings(t *testing.T) {
	var plain SkillList
	require.NoError(t, json.Unmarshal([]byte(`["Go","SQL"]`), &plain))
	assert.Equal(t, SkillList{"Go", "SQL"}, plain)

	var objs SkillList
	require.NoError(t, json.Unmarshal([]byte(`[{"name":"Go"},{"name":""},{"name":"SQL"}]`), &objs))
	assert.Equal(t, SkillList{"Go", "SQL"}, objs)
}

func TestResumeContactEmailValue(t *testing.T) {
	var r Resume
	payload := `{
		"id": "r1",
		"contact": [
			{"type": {"id": "phone"}, "value": {"formatted": "+7 900"}},
			{"type": {"id": "email"}, "value": "a@b.c"}
		]
	}`
	require.NoError(t, json.Unmarshal([]byte(payload), &r))
	assert.Equal(t, "", r.Contact[0].EmailValue())
	assert.Equal(t, "a@b.c", r.Contact[1].EmailValue())

	var r2 Resume
	payload2 := `{"contact": [{"type": {"id": "email"}, "value": {"formatted": "x@y.z"}}]}`
	require.NoError(t, json.Unmarshal([]byte(payload2), &r2))
	assert.Equal(t, "x@y.z", r2.Contact[0].EmailValue())
}
