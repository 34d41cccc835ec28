// -------------------------------------------------------------------------------
// HashData - CDN Hash Metadata Record
//
// Author: Alex Freidah
//
// The bookkeeping record stored per content hash: which account/container the
// hash maps to, its cache TTL, and its enablement flags. The JSON encoding is
// the wire format cached in Redis, so it stays stable.
// -------------------------------------------------------------------------------

package storage

import (
	"encoding/json"
	"fmt"
)

// HashData is the metadata record tracked for a CDN hash.
type HashData struct {
	Account     string `json:"account"`
	Container   string `json:"container"`
	TTL         int    `json:"ttl"`
	CDNEnabled  bool   `json:"cdn_enabled"`
	LogsEnabled bool   `json:"logs_enabled"`
}

// Encode renders the record as its canonical JSON form.
func (h HashData) Encode() ([]byte, error) {
	return json.Marshal(h)
}

// DecodeHashData parses a JSON-encoded record.
func DecodeHashData(data []byte) (HashData, error) {
	var h HashData
	if err := json.Unmarshal(data, &h); err != nil {
		return HashData{}, fmt.Errorf("decode hash data: %w", err)
	}
	if h.Account == "" || h.Container == "" {
		return HashData{}, fmt.Errorf("decode hash data: missing account or container")
	}
	return h, nil
}
