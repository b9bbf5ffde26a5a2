package models

// MConfig Structure
type MConfig struct {
	Name     string         `yaml:"name"`
	Host     string         `yaml:"host"`
	Port     int            `yaml:"port"`
	LogLevel string         `yaml:"log_level"`
	GrpcHost string         `yaml:"grpc_host"`
	GrpcPort int            `yaml:"grpc_port"`
	Engine   MEngineConfig  `yaml:"engine"`
	Notice   MNoticeConfig  `yaml:"notice"`
	Storage  MStorageConfig `yaml:"storage"`
}

type MEngineConfig struct {
	WSURL                   string `yaml:"ws_url"`
	CommandURL              string `yaml:"command_url"`
	ReconnectDelayMs        int    `yaml:"reconnect_delay_ms"`
	HandshakeTimeoutSeconds int    `yaml:"handshake_timeout_seconds"`
}

type MNoticeConfig struct {
	ExpiryMs int `yaml:"expiry_ms"`
}

type MStorageConfig struct {
	DBType string `yaml:"db_type"`
	DBPath string `yaml:"db_path"`
}
