package policy

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"

	"memoji/internal/utils/logger"
)

// ruleFile is the persisted JSON schema. The file is human-editable,
// so loading must tolerate files that predate this schema.
type ruleFile struct {
	Custom []*PolicyRule `json:"custom"`
}

// Store owns the on-disk mirror of the custom rule list. It holds no
// business logic; the Manager is its only caller.
type Store struct {
	path string
	log  *logger.Logger
}

func NewStore(path string) *Store {
	return &Store{
		path: path,
		log:  logger.New("policy_store"),
	}
}

// Load reads the custom rules from disk. A missing file is created
// with an empty custom list. A malformed file or a missing "custom"
// key degrades into an empty rule set and is left untouched on disk
// until the next successful save; neither case is an error.
func (s *Store) Load() ([]*PolicyRule, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, s.log.Error("failed to read rule file %s", err, s.path)
		}
		s.log.Info("rule file %s not found, creating empty one", s.path)
		if err := s.Save(nil); err != nil {
			return nil, err
		}
		return []*PolicyRule{}, nil
	}

	var file ruleFile
	if err := json.Unmarshal(data, &file); err != nil {
		s.log.Warn("rule file %s is not valid JSON, treating as empty: %v", s.path, err)
		return []*PolicyRule{}, nil
	}
	if file.Custom == nil {
		s.log.Warn("rule file %s has no custom rule list, treating as empty", s.path)
		return []*PolicyRule{}, nil
	}
	return file.Custom, nil
}

// Save overwrites the rule file with the given custom rules. Single
// in-process writer, last write wins.
func (s *Store) Save(custom []*PolicyRule) error {
	if custom == nil {
		custom = []*PolicyRule{}
	}
	data, err := json.MarshalIndent(ruleFile{Custom: custom}, "", "  ")
	if err != nil {
		return s.log.Error("failed to encode rule file", err)
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return s.log.Error("failed to create rule file directory %s", err, dir)
		}
	}
	if err := os.WriteFile(s.path, data, 0644); err != nil {
		return s.log.Error("failed to write rule file %s", err, s.path)
	}
	return nil
}
