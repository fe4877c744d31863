package control

import (
	"encoding/json"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimeSignature_Validate(t *testing.T) {
	tests := []struct {
		name  string
		ts    TimeSignature
		valid bool
	}{
		{"common time", TimeSignature{4, 4}, true},
		{"waltz", TimeSignature{3, 4}, true},
		{"compound", TimeSignature{6, 8}, true},
		{"whole", TimeSignature{1, 1}, true},
		{"thirty-second", TimeSignature{7, 32}, true},
		{"denominator 3", TimeSignature{4, 3}, false},
		{"denominator 0", TimeSignature{4, 0}, false},
		{"denominator 64", TimeSignature{4, 64}, false},
		{"negative denominator", TimeSignature{4, -4}, false},
		{"numerator 0", TimeSignature{0, 4}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.ts.Validate()
			if tt.valid {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.True(t, IsInvalidArgument(err))
			}
		})
	}
}

func TestValidateTempo(t *testing.T) {
	assert.NoError(t, ValidateTempo(120))
	assert.NoError(t, ValidateTempo(0.001))
	assert.True(t, IsInvalidArgument(ValidateTempo(0)))
	assert.True(t, IsInvalidArgument(ValidateTempo(-10)))
	assert.True(t, IsInvalidArgument(ValidateTempo(math.NaN())))
	assert.True(t, IsInvalidArgument(ValidateTempo(math.Inf(1))))
}

func TestPlayingMode_JSON(t *testing.T) {
	data, err := json.Marshal(Playing)
	require.NoError(t, err)
	assert.Equal(t, `"PLAYING"`, string(data))

	var m PlayingMode
	require.NoError(t, json.Unmarshal([]byte(`"recording"`), &m))
	assert.Equal(t, Recording, m)

	err = json.Unmarshal([]byte(`"paused"`), &m)
	require.Error(t, err)
}

func TestParseSyncMode(t *testing.T) {
	m, err := ParseSyncMode("midi")
	require.NoError(t, err)
	assert.Equal(t, SyncMIDI, m)

	m, err = ParseSyncMode("ableton_link")
	require.NoError(t, err)
	assert.Equal(t, SyncLink, m)

	_, err = ParseSyncMode("smpte")
	assert.True(t, IsInvalidArgument(err))
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindNotFound, KindOf(NotFound("track %d", 7)))
	assert.Equal(t, KindUnavailable, KindOf(fmt.Errorf("wrapped: %w", Unavailable("busy"))))
	assert.Equal(t, KindInternal, KindOf(fmt.Errorf("plain")))
	assert.False(t, IsNotFound(nil))
}

func TestError_Error(t *testing.T) {
	err := NotFound("no track named %q", "drums")
	assert.Equal(t, `NotFound: no track named "drums"`, err.Error())

	wrapped := Internal("apply failed", fmt.Errorf("slot corrupted"))
	assert.Equal(t, "Internal: apply failed: slot corrupted", wrapped.Error())
	assert.EqualError(t, wrapped.Unwrap(), "slot corrupted")
}
