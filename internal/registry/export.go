package registry

import (
	"context"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// ExportedPrompt is the YAML shape of one prompt in an export file. Only the
// current version's content travels; history stays in the database.
type ExportedPrompt struct {
	Content string   `yaml:"content"`
	Version int64    `yaml:"version"`
	Tags    []string `yaml:"tags,omitempty"`
}

// Export writes all prompts' current versions as YAML.
func (s *Service) Export(ctx context.Context, w io.Writer) error {
	prompts, err := s.prompts.List(ctx)
	if err != nil {
		return err
	}

	exported := make(map[string]ExportedPrompt, len(prompts))
	for _, p := range prompts {
		current, err := s.prompts.GetCurrentVersion(ctx, p.Name)
		if err != nil {
			return err
		}
		content := ""
		if current != nil {
			content = current.Content
		}
		exported[p.Name] = ExportedPrompt{
			Content: content,
			Version: p.CurrentVersion,
			Tags:    p.Tags,
		}
	}

	enc := yaml.NewEncoder(w)
	defer enc.Close()
	if err := enc.Encode(exported); err != nil {
		return fmt.Errorf("failed to encode export: %w", err)
	}
	return nil
}

// Import registers each prompt from a YAML export as a new version and
// returns the number imported.
func (s *Service) Import(ctx context.Context, r io.Reader) (int, error) {
	var data map[string]ExportedPrompt
	if err := yaml.NewDecoder(r).Decode(&data); err != nil {
		return 0, fmt.Errorf("failed to decode import: %w", err)
	}

	message := "Imported from file"
	count := 0
	for name, p := range data {
		if _, err := s.prompts.Register(ctx, name, p.Content, nil, &message, p.Tags); err != nil {
			return count, fmt.Errorf("failed to import prompt %q: %w", name, err)
		}
		count++
	}
	return count, nil
}
