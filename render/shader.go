package render

import (
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"golang.org/x/sync/errgroup"
)

// The two shader stages are compiled offline (see the Makefile) and read
// back as opaque SPIR-V at startup. Paths are fixed relative to the
// shader directory.
const (
	vertShaderFile = "shader.vert.spv"
	fragShaderFile = "shader.frag.spv"
)

const spirvMagic = 0x07230203

type shaderPair struct {
	vert []uint32
	frag []uint32
}

// loadShaderPair reads both artifacts concurrently. File I/O only; no GPU
// handles are touched here.
func loadShaderPair(dir string) (shaderPair, error) {
	var pair shaderPair

	var group errgroup.Group
	group.Go(func() error {
		code, err := loadShader(filepath.Join(dir, vertShaderFile))
		pair.vert = code
		return err
	})
	group.Go(func() error {
		code, err := loadShader(filepath.Join(dir, fragShaderFile))
		pair.frag = code
		return err
	})
	if err := group.Wait(); err != nil {
		return shaderPair{}, err
	}

	return pair, nil
}

func loadShader(path string) ([]uint32, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "reading shader %s", path), ErrAssetMissing)
	}

	code, err := spirvWords(raw)
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "shader %s", path), ErrAssetMissing)
	}
	return code, nil
}

// spirvWords reassembles little-endian bytes into the 32-bit words the
// driver consumes, rejecting artifacts that cannot be SPIR-V.
func spirvWords(raw []byte) ([]uint32, error) {
	if len(raw) == 0 || len(raw)%4 != 0 {
		return nil, errors.Newf("%d bytes is not a whole number of SPIR-V words", len(raw))
	}

	words := make([]uint32, len(raw)/4)
	for i := 0; i < len(words); i++ {
		byteIndex := i * 4
		words[i] = 0
		words[i] |= uint32(raw[byteIndex])
		words[i] |= uint32(raw[byteIndex+1]) << 8
		words[i] |= uint32(raw[byteIndex+2]) << 16
		words[i] |= uint32(raw[byteIndex+3]) << 24
	}

	if words[0] != spirvMagic {
		return nil, errors.Newf("bad magic word %#08x", words[0])
	}
	return words, nil
}
