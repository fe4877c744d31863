package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/roach88/sushid/internal/config"
	"github.com/roach88/sushid/internal/registry"
)

// LoadError is a configuration that could not be loaded or built.
type LoadError struct {
	Code    string
	Path    string
	Message string
	Errors  []string // individual schema violations, if any
}

func (e *LoadError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Code, e.Path, e.Message)
}

// loadConfig reads an engine configuration, or returns the built-in
// default when path is empty. The topology is built once to surface
// unknown plugins and duplicate names before anything starts.
func loadConfig(path string) (*config.Config, *registry.Snapshot, error) {
	var cfg *config.Config
	if path == "" {
		cfg = config.Default()
	} else {
		if _, err := os.Stat(path); err != nil {
			return nil, nil, &LoadError{Code: ErrCodeNotFound, Path: path, Message: "config file not found"}
		}
		loaded, err := config.Load(path)
		if err != nil {
			le := &LoadError{Code: ErrCodeConfigSchema, Path: path, Message: err.Error()}
			var verrs config.ValidationErrors
			if errors.As(err, &verrs) {
				le.Message = "configuration rejected by schema"
				for _, v := range verrs {
					le.Errors = append(le.Errors, v.Error())
				}
			}
			return nil, nil, le
		}
		cfg = loaded
	}

	snap, err := registry.Build(cfg)
	if err != nil {
		return nil, nil, &LoadError{Code: ErrCodeConfigTopology, Path: path, Message: err.Error()}
	}
	return cfg, snap, nil
}
