package provision

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// ServerSpec holds the artifact source and defaults for one server type
type ServerSpec struct {
	ArtifactURL  string   `yaml:"artifact_url"`
	ArtifactFile string   `yaml:"artifact_file"`
	ConfigFile   string   `yaml:"config_file"`
	Executables  []string `yaml:"executables"`
	MOTD         string   `yaml:"motd"`
	MaxPlayers   int      `yaml:"max_players"`
	Map          string   `yaml:"map"`
	Description  string   `yaml:"description"`
	SteamAppID   int      `yaml:"steam_app_id"`
	SteamGameID  int      `yaml:"steam_game_id"`
	World        string   `yaml:"world"`
	Password     string   `yaml:"password"`
}

// Catalog maps server types to their specs
type Catalog struct {
	Servers map[string]ServerSpec `yaml:"servers"`
}

// LoadCatalog reads the catalog at path, or the built-in one when path is
// empty. Every supported server type must have an entry.
func LoadCatalog(path string) (*Catalog, error) {
	data := defaultCatalog
	if path != "" {
		var err error
		if data, err = os.ReadFile(path); err != nil {
			return nil, fmt.Errorf("read catalog: %w", err)
		}
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes and validates a YAML catalog
func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}

	for _, kind := range ServerTypes() {
		spec, ok := c.Servers[kind]
		if !ok {
			return nil, fmt.Errorf("catalog has no entry for %s", kind)
		}
		if provisioners[kind].download && (spec.ArtifactURL == "" || spec.ArtifactFile == "") {
			return nil, fmt.Errorf("catalog entry %s needs artifact_url and artifact_file", kind)
		}
		if spec.ConfigFile == "" {
			return nil, fmt.Errorf("catalog entry %s needs config_file", kind)
		}
	}
	return &c, nil
}

// Spec returns the entry for kind
func (c *Catalog) Spec(kind string) (ServerSpec, bool) {
	s, ok := c.Servers[kind]
	return s, ok
}
