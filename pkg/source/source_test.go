package source

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsUnknownSpecs(t *testing.T) {
	tests := []struct {
		name string
		spec string
	}{
		{"no scheme", "/dev/ttyUSB0"},
		{"empty rest", "serial:"},
		{"unknown scheme", "udp:localhost:9000"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(context.Background(), tt.spec, Options{})
			assert.ErrorIs(t, err, ErrUnsupportedSource)
		})
	}
}

func TestFileReplayPump(t *testing.T) {
	path := filepath.Join(t.TempDir(), "recording.ubx")
	payload := []byte{0xB5, 0x62, 0xFF, 0x01, 0x00, 0x00, 0x00, 0x01}
	require.NoError(t, os.WriteFile(path, payload, 0o600))

	src, err := New(context.Background(), "file:"+path,
		Options{ReplayBytesPerSec: -1}) // unpaced
	require.NoError(t, err)
	defer src.Close()
	assert.Equal(t, "file:"+path, src.Describe())

	var got []byte
	err = Pump(context.Background(), src, func(chunk []byte) {
		got = append(got, chunk...)
	})
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}
