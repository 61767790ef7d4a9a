package mq

import "time"

// Config selects the broker. An empty Type or TypeNone disables publishing.
type Config struct {
	Type  Type         `yaml:"type" mapstructure:"type"`
	Kafka *KafkaConfig `yaml:"kafka" mapstructure:"kafka"`
}

// Enabled reports whether a broker is configured.
func (c *Config) Enabled() bool {
	return c != nil && c.Type != "" && c.Type != TypeNone
}

func DefaultConfig() *Config {
	return &Config{Type: TypeNone, Kafka: DefaultKafkaConfig()}
}

type KafkaConfig struct {
	Brokers  []string `yaml:"brokers" mapstructure:"brokers"`
	Version  string   `yaml:"version" mapstructure:"version"`
	ClientID string   `yaml:"client_id" mapstructure:"client_id"`

	SASL     KafkaSASLConfig     `yaml:"sasl" mapstructure:"sasl"`
	TLS      KafkaTLSConfig      `yaml:"tls" mapstructure:"tls"`
	Producer KafkaProducerConfig `yaml:"producer" mapstructure:"producer"`
}

type KafkaSASLConfig struct {
	Enable    bool   `yaml:"enable" mapstructure:"enable"`
	Mechanism string `yaml:"mechanism" mapstructure:"mechanism"` // PLAIN, SCRAM-SHA-256, SCRAM-SHA-512
	Username  string `yaml:"username" mapstructure:"username"`
	Password  string `yaml:"password" mapstructure:"password"`
}

type KafkaTLSConfig struct {
	Enable   bool   `yaml:"enable" mapstructure:"enable"`
	CertFile string `yaml:"cert_file" mapstructure:"cert_file"`
	KeyFile  string `yaml:"key_file" mapstructure:"key_file"`
	CAFile   string `yaml:"ca_file" mapstructure:"ca_file"`
	Insecure bool   `yaml:"insecure" mapstructure:"insecure"`
}

type KafkaProducerConfig struct {
	RequiredAcks    string        `yaml:"required_acks" mapstructure:"required_acks"` // none, leader, all
	Timeout         time.Duration `yaml:"timeout" mapstructure:"timeout"`
	MaxMessageBytes int           `yaml:"max_message_bytes" mapstructure:"max_message_bytes"`
	Compression     string        `yaml:"compression" mapstructure:"compression"` // none, gzip, snappy, lz4, zstd
	Idempotent      bool          `yaml:"idempotent" mapstructure:"idempotent"`
	RetryMax        int           `yaml:"retry_max" mapstructure:"retry_max"`
}

// DefaultKafkaConfig waits for all in-sync replicas; audit records are
// not worth losing to a leader failover.
func DefaultKafkaConfig() *KafkaConfig {
	return &KafkaConfig{
		Brokers:  []string{"127.0.0.1:9092"},
		Version:  "2.8.0",
		ClientID: "compia-server",
		Producer: KafkaProducerConfig{
			RequiredAcks:    "all",
			Timeout:         10 * time.Second,
			MaxMessageBytes: 1024 * 1024,
			Compression:     "snappy",
			RetryMax:        3,
		},
	}
}
