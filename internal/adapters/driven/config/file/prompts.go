package file

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/custodia-labs/testforge/internal/core/ports/driven"
	"github.com/custodia-labs/testforge/internal/logger"
)

// Ensure PromptStore implements the interface.
var _ driven.PromptStore = (*PromptStore)(nil)

// requiredPlaceholders lists the verbs a customised prompt must keep.
var requiredPlaceholders = map[string][]string{
	driven.PromptTestCases: {"%[1]s", "%[3]d", "%[5]s"},
}

// PromptStore loads LLM prompts from user-editable files on disk.
// Files are seeded from the built-in prompts the first time a prompt is
// loaded. A customised file that drops a required placeholder is ignored in
// favour of the built-in prompt.
type PromptStore struct {
	mu        sync.RWMutex
	promptDir string
	cache     map[string]string
	defaults  map[string]string
	initOnce  sync.Once
	initErr   error
}

// NewPromptStore creates a new file-based prompt store.
// If promptDir is empty, defaults to <DefaultDir>/prompts.
func NewPromptStore(promptDir string) (*PromptStore, error) {
	if promptDir == "" {
		dir, err := DefaultDir()
		if err != nil {
			return nil, fmt.Errorf("get home directory: %w", err)
		}
		promptDir = filepath.Join(dir, "prompts")
	}

	return &PromptStore{
		promptDir: promptDir,
		cache:     make(map[string]string),
		defaults:  driven.DefaultPrompts(),
	}, nil
}

// Load returns the prompt template for the given name.
func (s *PromptStore) Load(name string) (string, error) {
	s.initOnce.Do(s.initialise)

	fallback, known := s.defaults[name]
	if s.initErr != nil {
		if known {
			return fallback, nil
		}
		return "", fmt.Errorf("prompt store init failed: %w", s.initErr)
	}

	s.mu.RLock()
	prompt, ok := s.cache[name]
	s.mu.RUnlock()
	if ok {
		return prompt, nil
	}

	prompt, err := s.loadFromFile(name)
	switch {
	case err != nil && known:
		prompt = fallback
	case err != nil:
		return "", fmt.Errorf("load prompt %q: %w", name, err)
	case !hasPlaceholders(name, prompt):
		logger.Warn("Prompt %s is missing required placeholders %v; using the built-in prompt",
			name, requiredPlaceholders[name])
		prompt = fallback
	}

	s.mu.Lock()
	if cached, ok := s.cache[name]; ok {
		prompt = cached
	} else {
		s.cache[name] = prompt
	}
	s.mu.Unlock()

	return prompt, nil
}

// Reload clears the prompt cache, forcing fresh loads from disk.
func (s *PromptStore) Reload() {
	s.mu.Lock()
	s.cache = make(map[string]string)
	s.mu.Unlock()
}

// Dir returns the prompt directory path.
func (s *PromptStore) Dir() string {
	return s.promptDir
}

// Names lists the built-in prompt names.
func (s *PromptStore) Names() []string {
	names := make([]string, 0, len(s.defaults))
	for name := range s.defaults {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func hasPlaceholders(name, prompt string) bool {
	for _, p := range requiredPlaceholders[name] {
		if !strings.Contains(prompt, p) {
			return false
		}
	}
	return true
}

// initialise creates the prompt directory and seeds missing files.
func (s *PromptStore) initialise() {
	if err := os.MkdirAll(s.promptDir, 0700); err != nil {
		s.initErr = fmt.Errorf("create prompt directory: %w", err)
		return
	}

	for name, content := range s.defaults {
		path := s.path(name)
		if _, err := os.Stat(path); os.IsNotExist(err) {
			if err := os.WriteFile(path, []byte(content), 0600); err != nil {
				s.initErr = fmt.Errorf("create default prompt %q: %w", name, err)
				return
			}
		}
	}

	if err := s.createReadme(); err != nil {
		s.initErr = err
	}
}

func (s *PromptStore) path(name string) string {
	return filepath.Join(s.promptDir, name+".txt")
}

func (s *PromptStore) loadFromFile(name string) (string, error) {
	data, err := os.ReadFile(s.path(name))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// createReadme writes a README file explaining the prompts directory.
func (s *PromptStore) createReadme() error {
	path := filepath.Join(s.promptDir, "README.md")
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		return nil
	}

	content := `# testforge prompts

These files hold the prompts used to generate test cases.

- ` + "`system.txt`" + ` - system message sent with every generation request
- ` + "`test_cases.txt`" + ` - the generation request itself

Edit a file to change the model's instructions. Changes apply to the next
command, or after restarting ` + "`testforge serve`" + `.

` + "`test_cases.txt`" + ` uses indexed Go fmt placeholders:

- ` + "`%[1]s`" + ` retrieved documentation (required)
- ` + "`%[2]s`" + ` page summary, empty when no HTML was supplied
- ` + "`%[3]d`" + ` number of test cases requested (required)
- ` + "`%[4]s`" + ` feature name
- ` + "`%[5]s`" + ` the user's request (required)

A file missing a required placeholder is ignored and the built-in prompt
is used instead. Delete a file to restore its default.
`
	return os.WriteFile(path, []byte(content), 0600)
}
