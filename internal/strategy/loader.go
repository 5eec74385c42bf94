package strategy

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/voltlab/regimeflow/internal/contracts"
)

// Load reads a strategy parameter YAML document and validates it.
// KnownFields(true): 오타/미사용 필드는 즉시 실패
func Load(path string) (*Params, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read params file: %w", err)
	}

	var p Params
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("decode params: %w", err)
	}

	if err := Validate(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Hash generates a deterministic SHA-256 hash of the parameter document.
// Struct (not map) marshaling keeps field order stable across runs.
func Hash(p *Params) (string, error) {
	jsonBytes, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(jsonBytes)
	return hex.EncodeToString(sum[:]), nil
}

// Metadata builds the StrategyMetadata row for the parameter document, ready
// for StrategyRepository.Ensure.
func Metadata(p *Params) (*contracts.StrategyMetadata, error) {
	hash, err := Hash(p)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return &contracts.StrategyMetadata{
		StrategyID: p.Meta.StrategyID,
		Name:       p.Meta.Name,
		Version:    p.Meta.Version,
		Parameters: raw,
		ConfigHash: hash,
		IsActive:   true,
		CreatedAt:  time.Now().UTC(),
	}, nil
}
