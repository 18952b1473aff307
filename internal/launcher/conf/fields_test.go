package conf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sjzar/xivlauncher/internal/model"
)

func TestSetProfileField(t *testing.T) {
	p := model.NewProfile("Main")
	id := p.ID

	require.NoError(t, SetProfileField(p, "game_path", "/games/ffxiv"))
	require.NoError(t, SetProfileField(p, "use_gamescope", "true"))
	require.NoError(t, SetProfileField(p, "gamescope.width", "2560"))
	require.NoError(t, SetProfileField(p, "dalamud.channel", string(model.ChannelStaging)))
	require.NoError(t, SetProfileField(p, "dalamud.enabled", "1"))

	assert.Equal(t, id, p.ID)
	assert.Equal(t, "/games/ffxiv", p.GamePath)
	assert.True(t, p.UseGamescope)
	assert.Equal(t, 2560, p.Gamescope.Width)
	assert.Equal(t, model.ChannelStaging, p.Dalamud.Channel)
	assert.True(t, p.Dalamud.Enabled)
}

func TestSetProfileFieldRejects(t *testing.T) {
	p := model.NewProfile("Main")
	before := *p

	assert.Error(t, SetProfileField(p, "id", "other"))
	assert.Error(t, SetProfileField(p, "no_such_field", "x"))
	assert.Error(t, SetProfileField(p, "use_gamescope", "maybe"))
	assert.Error(t, SetProfileField(p, "gamescope.width", "wide"))
	assert.Error(t, SetProfileField(p, "dalamud.channel", "nightly"))
	assert.Error(t, SetProfileField(p, "gamescope", "x"))
	assert.Equal(t, before, *p)
}

func TestProfileFields(t *testing.T) {
	p := model.NewProfile("Main")
	p.Gamescope.Width = 1920

	fields, err := ProfileFields(p)
	require.NoError(t, err)

	values := map[string]string{}
	for _, f := range fields {
		values[f[0]] = f[1]
	}
	assert.NotContains(t, values, "id")
	assert.Equal(t, "Main", values["name"])
	assert.Equal(t, "1920", values["gamescope.width"])
	assert.Equal(t, string(model.ChannelStable), values["dalamud.channel"])
}
