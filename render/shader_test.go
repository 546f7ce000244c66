package render

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
)

func writeShader(t *testing.T, dir, name string, raw []byte) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), raw, 0o644))
}

func spirvBytes(words ...uint32) []byte {
	raw := make([]byte, 0, len(words)*4)
	for _, word := range words {
		raw = append(raw, byte(word), byte(word>>8), byte(word>>16), byte(word>>24))
	}
	return raw
}

func TestSpirvWordsReassemblesLittleEndian(t *testing.T) {
	words, err := spirvWords([]byte{0x03, 0x02, 0x23, 0x07, 0x78, 0x56, 0x34, 0x12})
	require.NoError(t, err)
	require.Equal(t, []uint32{0x07230203, 0x12345678}, words)
}

func TestSpirvWordsRejectsMalformedArtifacts(t *testing.T) {
	for _, tc := range []struct {
		name string
		raw  []byte
	}{
		{"empty", nil},
		{"partial word", []byte{0x03, 0x02, 0x23}},
		{"bad magic", spirvBytes(0xdeadbeef, 0x01)},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := spirvWords(tc.raw)
			require.Error(t, err)
		})
	}
}

func TestLoadShaderPairReadsBothStages(t *testing.T) {
	dir := t.TempDir()
	writeShader(t, dir, vertShaderFile, spirvBytes(spirvMagic, 1))
	writeShader(t, dir, fragShaderFile, spirvBytes(spirvMagic, 2))

	pair, err := loadShaderPair(dir)
	require.NoError(t, err)
	require.Equal(t, []uint32{spirvMagic, 1}, pair.vert)
	require.Equal(t, []uint32{spirvMagic, 2}, pair.frag)
}

func TestLoadShaderPairMissingArtifact(t *testing.T) {
	dir := t.TempDir()
	writeShader(t, dir, vertShaderFile, spirvBytes(spirvMagic))

	_, err := loadShaderPair(dir)
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrAssetMissing))
}

func TestLoadShaderPairMalformedArtifact(t *testing.T) {
	dir := t.TempDir()
	writeShader(t, dir, vertShaderFile, []byte{1, 2, 3})
	writeShader(t, dir, fragShaderFile, spirvBytes(spirvMagic))

	_, err := loadShaderPair(dir)
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrAssetMissing))
}
