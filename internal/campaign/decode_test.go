package campaign

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeList_Scenarios(t *testing.T) {
	tests := []struct {
		name      string
		payload   string
		wantLen   int
		wantTypes []Type
	}{
		{
			name: "well formed banner",
			payload: `[{"id":"c1","campaign_type":"BAN","screen":"Home",
				"details":{"image":"https://cdn/x.png","link":"https://x","width":320,"height":80}}]`,
			wantLen:   1,
			wantTypes: []Type{TypeBanner},
		},
		{
			name: "one good one unrecognized type",
			payload: `[{"id":"c1","campaign_type":"BAN","details":{"image":"i"}},
				{"id":"c2","campaign_type":"HOLOGRAM","details":{"beam":"up"}}]`,
			wantLen:   2,
			wantTypes: []Type{TypeBanner, TypeUnknown},
		},
		{
			name: "known type with malformed details",
			payload: `[{"id":"c3","campaign_type":"WID","details":{"widget_images":"not-an-array"}}]`,
			wantLen:   1,
			wantTypes: []Type{TypeWidget},
		},
		{
			name:      "empty list",
			payload:   `[]`,
			wantLen:   0,
			wantTypes: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeList([]byte(tt.payload))
			require.NoError(t, err)
			require.Len(t, got, tt.wantLen)
			for i, want := range tt.wantTypes {
				assert.Equal(t, want, got[i].Type)
			}
		})
	}
}

func TestDecodeList_BadEntryDoesNotPoisonBatch(t *testing.T) {
	payload := `[
		{"id":"ok","campaign_type":"BAN","details":{"image":"i","link":"l"}},
		{"id":"bad","campaign_type":"XYZ","details":{"whatever":true}}
	]`
	got, err := DecodeList([]byte(payload))
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "ok", got[0].ID)
	assert.IsType(t, BannerDetails{}, got[0].Details)

	assert.Equal(t, "bad", got[1].ID)
	assert.IsType(t, UnknownDetails{}, got[1].Details)
}

func TestDecodeList_TriggerFieldsSurvive(t *testing.T) {
	payload := `[{"id":"c9","campaign_type":"MOD","screen":"Checkout",
		"display_trigger":true,"trigger_event":"signup_done","priority":2,
		"details":{"modals":[{"id":"m1","url":"https://cdn/m.png","size":"medium"}]}}]`
	got, err := DecodeList([]byte(payload))
	require.NoError(t, err)
	require.Len(t, got, 1)

	c := got[0]
	assert.True(t, c.DisplayTrigger)
	assert.Equal(t, "signup_done", c.TriggerEvent)
	assert.Equal(t, "Checkout", c.Screen)
	require.NotNil(t, c.Priority)
	assert.Equal(t, 2, *c.Priority)
}

func TestParseType_Fallback(t *testing.T) {
	assert.Equal(t, TypeBanner, ParseType("BAN"))
	assert.Equal(t, TypeUnknown, ParseType(""))
	assert.Equal(t, TypeUnknown, ParseType("ban"))
}

func TestTypeInline(t *testing.T) {
	assert.True(t, TypeWidget.Inline())
	assert.True(t, TypeStories.Inline())
	assert.True(t, TypeReel.Inline())
	assert.False(t, TypeBanner.Inline())
	assert.False(t, TypeModal.Inline())
}
