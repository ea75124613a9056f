package store

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"pagebot/internal/domain"
)

type seedFile struct {
	Pages []*domain.PageProfile `yaml:"pages"`
}

// ImportYAML loads page profiles from a YAML seed file and upserts them
// into the store. Returns the number of profiles imported.
func ImportYAML(ctx context.Context, store domain.ProfileStore, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read seed file: %w", err)
	}

	var seed seedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return 0, fmt.Errorf("parse seed file: %w", err)
	}

	for i, p := range seed.Pages {
		if err := p.Validate(); err != nil {
			return 0, fmt.Errorf("seed entry %d: %w", i, err)
		}
	}
	for _, p := range seed.Pages {
		if err := store.Put(ctx, p); err != nil {
			return 0, err
		}
	}
	return len(seed.Pages), nil
}

// ExportYAML writes all page profiles in the store to a YAML file.
func ExportYAML(ctx context.Context, store domain.ProfileStore, path string) (int, error) {
	profiles, err := store.List(ctx)
	if err != nil {
		return 0, err
	}

	data, err := yaml.Marshal(seedFile{Pages: profiles})
	if err != nil {
		return 0, fmt.Errorf("marshal pages: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return 0, fmt.Errorf("write seed file: %w", err)
	}
	return len(profiles), nil
}
