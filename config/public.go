package config

import (
	"sort"
	"time"
)

// safe for API structure
type PublicConfig struct {
	General struct {
		NodeID   string `json:"nodeId"`
		LogLevel string `json:"logLevel"`
	} `json:"general"`

	Watch struct {
		Paths    []string          `json:"paths"`
		AutoShow bool              `json:"autoShow"`
		Debounce time.Duration     `json:"debounce"`
		Presets  map[string]string `json:"presets"`
	} `json:"watch"`

	Viewer struct {
		Console        bool `json:"console"`
		MaxBufferBytes int  `json:"maxBufferBytes"`
	} `json:"viewer"`

	HTTP struct {
		Enabled bool   `json:"enabled"`
		Address string `json:"address"`
		Port    int    `json:"port"`
		TLS     bool   `json:"tls"`

		JWT struct {
			ExpirationMinutes int `json:"expirationMinutes"`
		} `json:"jwt"`
	} `json:"http"`

	GRPC struct {
		Enabled bool   `json:"enabled"`
		Address string `json:"address"`
		Port    int    `json:"port"`
	} `json:"grpc"`

	Security struct {
		EnableAuthentication bool     `json:"enableAuthentication"`
		Users                []string `json:"users"`
	} `json:"security"`

	Logging struct {
		Level       string `json:"level"`
		ChannelSize int    `json:"channelSize"`
		Format      string `json:"format"`
		Output      string `json:"output"`
	} `json:"logging"`
}

// Public returns the configuration without secrets or file locations
func (c *Config) Public() *PublicConfig {
	p := &PublicConfig{}

	p.General.NodeID = c.General.NodeID
	p.General.LogLevel = c.General.LogLevel

	p.Watch.Paths = append([]string{}, c.Watch.Paths...)
	p.Watch.AutoShow = c.Watch.AutoShow
	p.Watch.Debounce = c.Watch.Debounce
	p.Watch.Presets = make(map[string]string, len(c.Watch.Presets))
	for name, path := range c.Watch.Presets {
		p.Watch.Presets[name] = path
	}

	p.Viewer.Console = c.Viewer.Console
	p.Viewer.MaxBufferBytes = c.Viewer.MaxBufferBytes

	p.HTTP.Enabled = c.HTTP.Enabled
	p.HTTP.Address = c.HTTP.Address
	p.HTTP.Port = c.HTTP.Port
	p.HTTP.TLS = c.HTTP.TLS
	p.HTTP.JWT.ExpirationMinutes = c.HTTP.JWT.ExpirationMinutes

	p.GRPC.Enabled = c.GRPC.Enabled
	p.GRPC.Address = c.GRPC.Address
	p.GRPC.Port = c.GRPC.Port

	p.Security.EnableAuthentication = c.Security.EnableAuthentication
	p.Security.Users = make([]string, 0, len(c.Security.Users))
	for username := range c.Security.Users {
		p.Security.Users = append(p.Security.Users, username)
	}
	sort.Strings(p.Security.Users)

	p.Logging.Level = c.Logging.Level
	p.Logging.ChannelSize = c.Logging.ChannelSize
	p.Logging.Format = c.Logging.Format
	p.Logging.Output = c.Logging.Output

	return p
}
