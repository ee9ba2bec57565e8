package config

import "fmt"

// HTTPConfig configures the API listener.
type HTTPConfig struct {
	Address string `json:"address"`
	// Token, when set, is required as a bearer token on /api routes.
	Token string `json:"token"`
}

func (c *HTTPConfig) SetDefaults() {
	if c.Address == "" {
		c.Address = ":8080"
	}
}

func (c HTTPConfig) Validate() error {
	if c.Address == "-" {
		return nil
	}
	if c.Address == "" {
		return fmt.Errorf("http: address is required")
	}
	return nil
}

// Disabled reports whether the API listener is switched off with "-".
func (c HTTPConfig) Disabled() bool { return c.Address == "-" }
