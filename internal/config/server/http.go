package server

// HTTPServerConfig holds the API listener configuration
type HTTPServerConfig struct {
	Address string `mapstructure:"address" yaml:"address"`
}
