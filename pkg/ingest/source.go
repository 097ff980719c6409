package ingest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/haziq21/letter-boxed-solver/pkg/puzzle"
)

// maxPayloadSize caps how much of a payload source is read into memory.
const maxPayloadSize = 64 * 1024 * 1024

// LoadFile reads payloads from path. "-" reads standard input.
func LoadFile(path string) ([]puzzle.Update, error) {
	if path == "-" {
		return ReadPayloads(os.Stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadPayloads(f)
}

// ReadPayloads accepts either a single payload object or an array of them
// (a backfill archive) and validates every entry. Any invalid entry rejects
// the whole input so nothing is written.
func ReadPayloads(r io.Reader) ([]puzzle.Update, error) {
	body, err := io.ReadAll(io.LimitReader(r, maxPayloadSize+1))
	if err != nil {
		return nil, err
	}
	if len(body) > maxPayloadSize {
		return nil, fmt.Errorf("payload exceeds %d bytes", maxPayloadSize)
	}
	body = bytes.TrimSpace(body)

	var payloads []puzzle.Payload
	if len(body) > 0 && body[0] == '[' {
		if err := json.Unmarshal(body, &payloads); err != nil {
			return nil, &puzzle.ValidationError{Field: "body", Reason: err.Error()}
		}
	} else {
		var p puzzle.Payload
		if err := json.Unmarshal(body, &p); err != nil {
			return nil, &puzzle.ValidationError{Field: "body", Reason: err.Error()}
		}
		payloads = []puzzle.Payload{p}
	}

	updates := make([]puzzle.Update, 0, len(payloads))
	for i, p := range payloads {
		u, err := p.Normalize()
		if err != nil {
			return nil, fmt.Errorf("payload %d: %w", i, err)
		}
		updates = append(updates, u)
	}
	return updates, nil
}
