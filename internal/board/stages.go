package board

import (
	"os"
	"strings"

	"funnelboard_backend/platform/logger"

	"gopkg.in/yaml.v3"
)

// stagesFile is the YAML shape of the optional stage-order configuration:
//
//	stages:
//	  - Novo
//	  - Análise
//	  - Proposta
type stagesFile struct {
	Stages []string `yaml:"stages"`
}

// LoadStageOrder reads the configured column order from a YAML file.
// An empty path, a missing file, or a malformed file all yield no
// configured order; the board then sorts columns alphabetically.
func LoadStageOrder(path string, log *logger.Logger) []string {
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		log.Warn("stages file unreadable; using alphabetical column order", "path", path, "error", err)
		return nil
	}

	var parsed stagesFile
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		log.Warn("stages file malformed; using alphabetical column order", "path", path, "error", err)
		return nil
	}

	stages := make([]string, 0, len(parsed.Stages))
	for _, stage := range parsed.Stages {
		if trimmed := strings.TrimSpace(stage); trimmed != "" {
			stages = append(stages, trimmed)
		}
	}
	return stages
}
