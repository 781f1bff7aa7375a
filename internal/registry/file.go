package registry

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadFile reads a registry export (.json, .yaml or .yml) and returns the
// snapshot with its raw bytes. Unknown fields fail the load so a typo in a
// column name is not silently dropped.
func LoadFile(path string) (Snapshot, []byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Snapshot{}, nil, fmt.Errorf("read registry file: %w", err)
	}

	var s Snapshot
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true) // 알 수 없는 필드 발견 시 에러 반환
		if err := dec.Decode(&s); err != nil {
			return Snapshot{}, data, fmt.Errorf("decode registry file %s: %w", path, err)
		}
	default:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&s); err != nil {
			return Snapshot{}, data, fmt.Errorf("decode registry file %s: %w", path, err)
		}
	}

	if err := Validate(s); err != nil {
		return Snapshot{}, data, fmt.Errorf("registry file %s: %w", path, err)
	}
	return s, data, nil
}

// Validate checks the structural rules the database enforces: project ids
// are present and unique, every budget names a project id and every item
// has a code. Budgets pointing at an unregistered project are allowed.
func Validate(s Snapshot) error {
	ids := make(map[string]bool, len(s.Projects))
	for i, p := range s.Projects {
		if strings.TrimSpace(p.ID) == "" {
			return fmt.Errorf("projects[%d]: id is required", i)
		}
		if ids[p.ID] {
			return fmt.Errorf("projects[%d]: duplicate id %q", i, p.ID)
		}
		ids[p.ID] = true
	}

	budgets := make(map[string]bool, len(s.Budgets))
	for i, b := range s.Budgets {
		if strings.TrimSpace(b.ProjectID) == "" {
			return fmt.Errorf("budgets[%d]: project_id is required", i)
		}
		if budgets[b.ProjectID] {
			return fmt.Errorf("budgets[%d]: duplicate budget for project %q", i, b.ProjectID)
		}
		budgets[b.ProjectID] = true
		for j, item := range b.Items {
			if strings.TrimSpace(item.Code) == "" {
				return fmt.Errorf("budgets[%d].items[%d]: code is required", i, j)
			}
		}
	}
	return nil
}

// Hash returns the SHA256 of the snapshot's canonical JSON, so the same
// registry content hashes the same whatever file format it came from.
// 주의: map 대신 slice/struct 사용으로 해시 재현성 보장
func Hash(s Snapshot) (string, error) {
	jsonBytes, err := json.Marshal(s)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(jsonBytes)
	return hex.EncodeToString(sum[:]), nil
}
