package autolabel

import (
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"labelscope/utils"
)

// FromConfig builds the configured detector. It returns nil when
// auto-labeling is disabled.
func FromConfig(cfg utils.AutoLabelConfig) (Detector, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", "none":
		log.Info("Auto-labeling is disabled")
		return nil, nil
	case "http":
		if cfg.URL == "" {
			return nil, fmt.Errorf("autolabel: http backend needs a url")
		}
		log.Info(fmt.Sprintf("Auto-labeling through %s", cfg.URL))
		return NewHTTPDetector(cfg.URL, cfg.Timeout), nil
	case "ollama":
		d, err := NewOllamaDetector(cfg.URL, cfg.Model)
		if err != nil {
			return nil, fmt.Errorf("autolabel: %w", err)
		}
		if cfg.Timeout > 0 {
			d.Timeout = cfg.Timeout
		}
		if cfg.MaxDimension > 0 {
			d.MaxDimension = cfg.MaxDimension
		}
		log.Info(fmt.Sprintf("Auto-labeling with ollama model %s at %s", cfg.Model, cfg.URL))
		return d, nil
	default:
		return nil, fmt.Errorf("autolabel: unknown backend %s", cfg.Backend)
	}
}
