package config

import (
	"github.com/kelseyhightower/envconfig"
)

// Config holds the process-wide settings for the chat module. All values
// come from the environment (a .env file is loaded by main before parsing).
type Config struct {
	Port        string `envconfig:"PORT" default:":8080"`
	DBFile      string `envconfig:"DB_FILE" default:"chatfm.db"`
	JWTSecret   string `envconfig:"JWT_SECRET" required:"true"`
	RoutePrefix string `envconfig:"ROUTE_PREFIX" default:"/chat-fm"`

	// OpenAccess grants every authenticated user access to the chat module
	// without requiring an explicit module claim in their token.
	OpenAccess bool `envconfig:"OPEN_ACCESS" default:"true"`

	// RemoveMessages selects hard deletion for DELETE /messages/:id.
	// When false a removed message keeps its row with text cleared.
	RemoveMessages bool `envconfig:"REMOVE_MESSAGES" default:"false"`

	// Versioning enables edit history capture on messages.
	Versioning bool `envconfig:"ENABLE_VERSIONING" default:"true"`

	// MessageVersions bounds the retained edit history. A negative value
	// disables the bound; zero retains nothing.
	MessageVersions int `envconfig:"NB_MESSAGE_VERSIONS" default:"5"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("CHATFM", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
