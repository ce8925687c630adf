package profile

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"datalens/internal/model"
)

// File-backed sources accept their content either inline under the
// "data" config key (uploads) or on disk under "path". Inline wins.

func payloadReader(cfg model.Config) (io.ReadCloser, error) {
	if b := cfg.Bytes("data"); b != nil {
		return io.NopCloser(bytes.NewReader(b)), nil
	}
	path := cfg.String("path", "")
	if path == "" {
		return nil, errors.New(`source config carries neither "data" nor "path"`)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return f, nil
}

func readPayload(cfg model.Config) ([]byte, error) {
	if b := cfg.Bytes("data"); b != nil {
		return b, nil
	}
	path := cfg.String("path", "")
	if path == "" {
		return nil, errors.New(`source config carries neither "data" nor "path"`)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return b, nil
}
