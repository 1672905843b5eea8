package dynconfig

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigStore_GetPrompt_FallsBackWhenDBDisabled(t *testing.T) {
	cs := New(nil, Flags{UseDBPrompts: false})
	tpl, err := cs.GetPrompt(context.Background(), "planning")
	require.NoError(t, err)
	assert.Equal(t, GetBuiltinConfig().Prompts["planning"], tpl)
}

func TestConfigStore_GetSetting_FallsBackWhenDBDisabled(t *testing.T) {
	cs := New(nil, Flags{UseDBSettings: false})
	v := cs.GetSetting(context.Background(), "default", "analysis", "max_traces", "50")
	assert.Equal(t, "50", v)
}

func TestConfigStore_GetSettingInt_MalformedFallsBack(t *testing.T) {
	cs := New(nil, Flags{UseDBSettings: false})
	n := cs.GetSettingInt(context.Background(), "default", "analysis", "max_traces", 50)
	assert.Equal(t, 50, n)
}

func TestConfigStore_GetProject_BuiltinDefaults(t *testing.T) {
	cs := New(nil, Flags{UseDBProjects: false})

	p, err := cs.GetProject(context.Background(), "switch")
	require.NoError(t, err)
	assert.Equal(t, "remote", p.LogSourceType)

	fileBased, err := cs.IsFileBased(context.Background(), "default")
	require.NoError(t, err)
	assert.True(t, fileBased)

	remoteBased, err := cs.IsRemoteBased(context.Background(), "switch")
	require.NoError(t, err)
	assert.True(t, remoteBased)
}

func TestConfigStore_GetProject_UnknownCode(t *testing.T) {
	cs := New(nil, Flags{UseDBProjects: false})
	_, err := cs.GetProject(context.Background(), "nonexistent")
	require.Error(t, err)
}

func TestConfigStore_GetContextRules_EmptyWhenDBDisabled(t *testing.T) {
	cs := New(nil, Flags{UseDBProjects: false})
	rules, err := cs.GetContextRules(context.Background())
	require.NoError(t, err)
	assert.Empty(t, rules)
}

func TestConfigStore_Invalidate(t *testing.T) {
	cs := New(nil, Flags{})
	cs.prompts.set("k", "v")
	cs.Invalidate(BucketPrompts)
	_, ok := cs.prompts.get("k")
	assert.False(t, ok)
}
