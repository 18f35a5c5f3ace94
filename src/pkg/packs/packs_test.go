package packs

import (
	"bytes"
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sifzz "github.com/stuffzez/sifzz/src"
	"github.com/stuffzez/sifzz/src/pkg/webpack"
)

func newHost(t *testing.T) (*sifzz.Host, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	cfg := sifzz.DefaultConfig()
	cfg.Stdout = out
	cfg.Stderr = errOut
	h := sifzz.New(cfg)
	t.Cleanup(func() { _ = h.Close() })
	return h, out, errOut
}

func TestNew(t *testing.T) {
	for _, name := range Names {
		ext, err := New(name, nil)
		require.NoError(t, err, name)
		assert.Equal(t, name, ext.Name())
	}
	_, err := New("telepathy", nil)
	assert.Error(t, err)
}

func TestWebTimeoutFromConfig(t *testing.T) {
	cfg := sifzz.DefaultUserConfig()
	cfg.HTTPTimeout = 1.5
	ext, err := New("web", cfg)
	require.NoError(t, err)
	assert.Equal(t, 1500*time.Millisecond, ext.(*webpack.Pack).Timeout())

	cfg.HTTPTimeout = 0
	ext, err = New("web", cfg)
	require.NoError(t, err)
	assert.Equal(t, webpack.DefaultTimeout, ext.(*webpack.Pack).Timeout())
}

func TestLoad(t *testing.T) {
	h, _, errOut := newHost(t)
	cfg := sifzz.DefaultUserConfig()
	cfg.Extensions = []string{"math", "bogus", "file", "math"}

	assert.Equal(t, 2, Load(h, cfg))
	assert.Equal(t, []string{"core", "math", "file"}, h.Units())
	assert.Contains(t, errOut.String(), `unknown extension "bogus"`)
	assert.Contains(t, errOut.String(), "Failed to load extension math")
}

// the web pack is loaded before the sound pack, yet "get duration" must still
// reach the sound pack
func TestDefaultPacksDoNotShadowEachOther(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "blip.wav")
	require.NoError(t, os.WriteFile(file, pcm(8000, 4000), 0o644))

	h, out, _ := newHost(t)
	require.Equal(t, len(Names), Load(h, sifzz.DefaultUserConfig()))
	h.Env().Set("blip", file)

	require.NoError(t, h.Run(context.Background(), "get duration blip and store in secs\nsay secs", "packs.sfzz"))
	assert.Equal(t, "0.5\n", out.String())
}

// pcm builds a mono 8-bit WAV file
func pcm(rate uint32, dataBytes int) []byte {
	var buf bytes.Buffer
	le := binary.LittleEndian
	buf.WriteString("RIFF")
	_ = binary.Write(&buf, le, uint32(36+dataBytes))
	buf.WriteString("WAVEfmt ")
	_ = binary.Write(&buf, le, uint32(16))
	_ = binary.Write(&buf, le, uint16(1))
	_ = binary.Write(&buf, le, uint16(1))
	_ = binary.Write(&buf, le, rate)
	_ = binary.Write(&buf, le, rate)
	_ = binary.Write(&buf, le, uint16(1))
	_ = binary.Write(&buf, le, uint16(8))
	buf.WriteString("data")
	_ = binary.Write(&buf, le, uint32(dataBytes))
	buf.Write(make([]byte, dataBytes))
	return buf.Bytes()
}
