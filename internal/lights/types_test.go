package lights

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseColor(t *testing.T) {
	c, err := ParseColor("#ff8000")
	require.NoError(t, err)
	require.Equal(t, Color{R: 255, G: 128, B: 0}, c)

	_, err = ParseColor("orange")
	require.Error(t, err)
}

func TestColor_String(t *testing.T) {
	require.Equal(t, "#0a0b0c", Color{R: 10, G: 11, B: 12}.String())
}

func TestColor_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Color
		wantErr bool
	}{
		{name: "hex", input: `"#102030"`, want: Color{R: 0x10, G: 0x20, B: 0x30}},
		{name: "object", input: `{"r":1,"g":2,"b":3}`, want: Color{R: 1, G: 2, B: 3}},
		{name: "missing channel", input: `{"r":1,"g":2}`, wantErr: true},
		{name: "out of range", input: `{"r":300,"g":2,"b":3}`, wantErr: true},
		{name: "bad hex", input: `"#12"`, wantErr: true},
		{name: "number", input: `42`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var c Color
			err := json.Unmarshal([]byte(tt.input), &c)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, c)
		})
	}
}

func TestColor_MarshalJSON(t *testing.T) {
	data, err := json.Marshal([]Color{{R: 255}, {B: 255}})
	require.NoError(t, err)
	require.JSONEq(t, `["#ff0000","#0000ff"]`, string(data))
}

func TestColor_HSB(t *testing.T) {
	h, s, b := Color{R: 0, G: 255, B: 0}.HSB()
	assert.InDelta(t, 120, h, 0.01)
	assert.InDelta(t, 1, s, 0.001)
	assert.InDelta(t, 1, b, 0.001)

	_, s, b = Black.HSB()
	assert.Zero(t, s)
	assert.Zero(t, b)
}

func TestColor_XY(t *testing.T) {
	x, y := Black.XY()
	assert.InDelta(t, 0.3127, x, 0.0001)
	assert.InDelta(t, 0.3290, y, 0.0001)

	x, y = White.XY()
	assert.InDelta(t, 0.3127, x, 0.001)
	assert.InDelta(t, 0.3290, y, 0.001)

	x, _ = Color{R: 255}.XY()
	assert.Greater(t, x, 0.6)
}
