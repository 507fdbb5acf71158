package server

// Config holds the API server settings.
type Config struct {
	// ListenAddr is the HTTP listen address for the API server.
	ListenAddr string `yaml:"listen_addr"`
}

// DefaultConfig returns the development listen address.
func DefaultConfig() Config {
	return Config{ListenAddr: ":8090"}
}
