package ymusic_test

import (
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xeptore/ymdl/ymusic"
)

func TestRawTrackDecodeWithContext(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
		want ymusic.TrackID
	}{
		{name: "NumericID", body: `{"id":123,"title":"Song","durationMs":1000}`, want: "123"},
		{name: "StringID", body: `{"id":"123","title":"Song","durationMs":1000}`, want: "123"},
		{name: "NullID", body: `{"id":null,"title":"Song","durationMs":1000}`, want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var out []ymusic.RawTrack
			require.NotPanics(t, func() {
				require.NoError(t, json.UnmarshalContext(t.Context(), []byte("["+tt.body+"]"), &out))
			})
			require.Len(t, out, 1)

			m, err := out[0].Metadata()
			if tt.want == "" {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, m.ID)
		})
	}
}
