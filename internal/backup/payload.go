package backup

import (
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/dbpulse/dbpulse/internal/errors"
	"github.com/dbpulse/dbpulse/internal/store"
)

// payloadVersion identifies the serialization format
const payloadVersion = "1"

// Payload is the complete serialized content of one backup
type Payload struct {
	Meta   PayloadMeta            `json:"meta"`
	Schema []store.SchemaObject   `json:"schema"`
	Data   map[string][]store.Row `json:"data"`
}

// PayloadMeta describes the backup inside the payload itself
type PayloadMeta struct {
	ID        string           `json:"id"`
	Type      store.BackupType `json:"type"`
	CreatedAt time.Time        `json:"created_at"`
	Version   string           `json:"version"`
	Since     *time.Time       `json:"since,omitempty"` // incremental reference point
}

// encodePayload serializes a payload and computes its SHA-256 checksum over
// the exact uncompressed serialization. Compression is transport encoding
// applied after hashing.
func encodePayload(p *Payload) (raw []byte, checksum string, err error) {
	raw, err = json.Marshal(p)
	if err != nil {
		return nil, "", fmt.Errorf("failed to serialize backup payload: %w", err)
	}

	sum := sha256.Sum256(raw)
	return raw, hex.EncodeToString(sum[:]), nil
}

// decodePayload verifies the checksum against the recorded value and only
// then deserializes. A mismatch aborts before any data is touched.
func decodePayload(raw []byte, wantChecksum string) (*Payload, error) {
	sum := sha256.Sum256(raw)
	if hex.EncodeToString(sum[:]) != wantChecksum {
		return nil, errors.ErrChecksumMismatch.
			WithContext("expected", wantChecksum).
			WithContext("actual", hex.EncodeToString(sum[:]))
	}

	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("failed to deserialize backup payload: %w", err)
	}

	return &p, nil
}

func compress(raw []byte) ([]byte, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(raw); err != nil {
		return nil, fmt.Errorf("failed to compress backup payload: %w", err)
	}
	if err := gz.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish compression: %w", err)
	}
	return buf.Bytes(), nil
}

func decompress(data []byte) ([]byte, error) {
	gz, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open compressed payload: %w", err)
	}
	defer gz.Close()

	raw, err := io.ReadAll(gz)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress backup payload: %w", err)
	}
	return raw, nil
}
