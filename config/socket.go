package config

import "time"

// SocketConfig holds WebSocket server configuration.
type SocketConfig struct {
	MaxConnections  int           `mapstructure:"max_connections" json:"max_connections"`
	PingInterval    time.Duration `mapstructure:"ping_interval" json:"ping_interval"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" json:"write_timeout"`
	ReadBufferSize  int           `mapstructure:"read_buffer_size" json:"read_buffer_size"`
	WriteBufferSize int           `mapstructure:"write_buffer_size" json:"write_buffer_size"`
	SendBuffer      int           `mapstructure:"send_buffer" json:"send_buffer"`
}

// DefaultSocketConfig returns the default WebSocket configuration.
func DefaultSocketConfig() SocketConfig {
	return SocketConfig{
		MaxConnections:  1000,
		PingInterval:    30 * time.Second,
		WriteTimeout:    10 * time.Second,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		SendBuffer:      256,
	}
}
