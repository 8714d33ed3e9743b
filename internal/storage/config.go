package storage

type Config struct {
	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`

	Site struct {
		BaseURL string `yaml:"base_url"`
	} `yaml:"site"`

	CDN struct {
		BaseURL string `yaml:"base_url"`
	} `yaml:"cdn"`
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.Database.Path = "./lantern.db"
	cfg.Site.BaseURL = "https://lantern.local"
	cfg.CDN.BaseURL = "https://cdn.discordapp.com"
	return cfg
}
