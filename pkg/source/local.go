package source

import (
	"context"
	"fmt"
	"io"
	"os"
)

// Stdin is read by the "-" source; tests may swap it
var Stdin io.Reader = os.Stdin

type stdinFetcher struct{}

func (stdinFetcher) Fetch(_ context.Context, _ Location, limit int64) ([]byte, error) {
	return readLimited(Stdin, limit)
}

type fileFetcher struct{}

func (fileFetcher) Fetch(_ context.Context, loc Location, limit int64) ([]byte, error) {
	f, err := os.Open(loc.Path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return readLimited(f, limit)
}

func readLimited(r io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read failed: %w", err)
	}
	return data, nil
}
