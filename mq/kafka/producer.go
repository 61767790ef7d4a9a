package kafka

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/tiagossm/Compia20251207-sub001/mq"
)

func init() {
	mq.RegisterProducerFactory(mq.TypeKafka, NewProducer)
}

// Producer implements mq.Producer on a sarama SyncProducer.
type Producer struct {
	sync   sarama.SyncProducer
	logger *zap.Logger

	mu     sync.RWMutex
	closed bool
}

func NewProducer(cfg *mq.Config, logger *zap.Logger) (mq.Producer, error) {
	if cfg.Kafka == nil {
		return nil, fmt.Errorf("kafka config is required")
	}
	kafkaCfg := cfg.Kafka

	saramaCfg, err := buildSaramaConfig(kafkaCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build sarama config: %w", err)
	}
	sp, err := sarama.NewSyncProducer(kafkaCfg.Brokers, saramaCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	logger.Info("kafka producer started", zap.Strings("brokers", kafkaCfg.Brokers))
	return newProducer(sp, logger), nil
}

func newProducer(sp sarama.SyncProducer, logger *zap.Logger) *Producer {
	return &Producer{sync: sp, logger: logger}
}

// SendSync ignores ctx cancellation once the message is handed to sarama;
// the producer's own timeout bounds the wait.
func (p *Producer) SendSync(ctx context.Context, msg *mq.Message) (*mq.SendResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return nil, fmt.Errorf("producer is closed")
	}

	partition, offset, err := p.sync.SendMessage(toProducerMessage(msg))
	if err != nil {
		p.logger.Error("kafka send failed", zap.String("topic", msg.Topic), zap.Error(err))
		return nil, err
	}
	p.logger.Debug("kafka message sent",
		zap.String("topic", msg.Topic),
		zap.Int32("partition", partition),
		zap.Int64("offset", offset),
	)
	return &mq.SendResult{Topic: msg.Topic, Partition: partition, Offset: offset}, nil
}

func (p *Producer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true

	if err := p.sync.Close(); err != nil {
		p.logger.Error("failed to close kafka producer", zap.Error(err))
		return err
	}
	p.logger.Info("kafka producer closed")
	return nil
}

var (
	requiredAcks = map[string]sarama.RequiredAcks{
		"":       sarama.WaitForAll,
		"all":    sarama.WaitForAll,
		"leader": sarama.WaitForLocal,
		"none":   sarama.NoResponse,
	}
	compressionCodecs = map[string]sarama.CompressionCodec{
		"":       sarama.CompressionNone,
		"none":   sarama.CompressionNone,
		"gzip":   sarama.CompressionGZIP,
		"snappy": sarama.CompressionSnappy,
		"lz4":    sarama.CompressionLZ4,
		"zstd":   sarama.CompressionZSTD,
	}
)

// buildSaramaConfig rejects unknown acks, codecs and SASL mechanisms
// rather than silently downgrading them.
func buildSaramaConfig(cfg *mq.KafkaConfig) (*sarama.Config, error) {
	sc := sarama.NewConfig()
	if cfg.ClientID != "" {
		sc.ClientID = cfg.ClientID
	}
	if cfg.Version != "" {
		version, err := sarama.ParseKafkaVersion(cfg.Version)
		if err != nil {
			return nil, fmt.Errorf("kafka version %q: %w", cfg.Version, err)
		}
		sc.Version = version
	}

	pc := cfg.Producer
	acks, ok := requiredAcks[pc.RequiredAcks]
	if !ok {
		return nil, fmt.Errorf("kafka required_acks %q: want none, leader or all", pc.RequiredAcks)
	}
	codec, ok := compressionCodecs[pc.Compression]
	if !ok {
		return nil, fmt.Errorf("kafka compression %q is not supported", pc.Compression)
	}
	// SyncProducer needs both channels.
	sc.Producer.Return.Successes = true
	sc.Producer.Return.Errors = true
	sc.Producer.RequiredAcks = acks
	sc.Producer.Compression = codec
	sc.Producer.Retry.Max = pc.RetryMax
	if pc.Timeout > 0 {
		sc.Producer.Timeout = pc.Timeout
	}
	if pc.MaxMessageBytes > 0 {
		sc.Producer.MaxMessageBytes = pc.MaxMessageBytes
	}
	if pc.Idempotent {
		sc.Producer.Idempotent = true
		sc.Producer.RequiredAcks = sarama.WaitForAll
		sc.Net.MaxOpenRequests = 1
	}

	if cfg.SASL.Enable {
		if err := applySASL(sc, cfg.SASL); err != nil {
			return nil, err
		}
	}
	if cfg.TLS.Enable {
		tlsConfig, err := clientTLS(cfg.TLS)
		if err != nil {
			return nil, err
		}
		sc.Net.TLS.Enable = true
		sc.Net.TLS.Config = tlsConfig
	}
	return sc, nil
}

func applySASL(sc *sarama.Config, cfg mq.KafkaSASLConfig) error {
	sc.Net.SASL.Enable = true
	sc.Net.SASL.User = cfg.Username
	sc.Net.SASL.Password = cfg.Password
	switch sarama.SASLMechanism(cfg.Mechanism) {
	case "", sarama.SASLTypePlaintext:
		sc.Net.SASL.Mechanism = sarama.SASLTypePlaintext
	case sarama.SASLTypeSCRAMSHA256:
		sc.Net.SASL.Mechanism = sarama.SASLTypeSCRAMSHA256
		sc.Net.SASL.SCRAMClientGeneratorFunc = func() sarama.SCRAMClient { return newSCRAMClient(sha256Hash) }
	case sarama.SASLTypeSCRAMSHA512:
		sc.Net.SASL.Mechanism = sarama.SASLTypeSCRAMSHA512
		sc.Net.SASL.SCRAMClientGeneratorFunc = func() sarama.SCRAMClient { return newSCRAMClient(sha512Hash) }
	default:
		return fmt.Errorf("kafka sasl mechanism %q is not supported", cfg.Mechanism)
	}
	return nil
}

func clientTLS(cfg mq.KafkaTLSConfig) (*tls.Config, error) {
	out := &tls.Config{MinVersion: tls.VersionTLS12, InsecureSkipVerify: cfg.Insecure}
	if cfg.CAFile != "" {
		bundle, err := os.ReadFile(cfg.CAFile)
		if err != nil {
			return nil, fmt.Errorf("read kafka CA %s: %w", cfg.CAFile, err)
		}
		roots := x509.NewCertPool()
		if !roots.AppendCertsFromPEM(bundle) {
			return nil, fmt.Errorf("kafka CA %s holds no PEM certificates", cfg.CAFile)
		}
		out.RootCAs = roots
	}
	if cfg.CertFile != "" && cfg.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("load kafka client certificate: %w", err)
		}
		out.Certificates = []tls.Certificate{cert}
	}
	return out, nil
}

func toProducerMessage(msg *mq.Message) *sarama.ProducerMessage {
	pm := &sarama.ProducerMessage{
		Topic:     msg.Topic,
		Value:     sarama.ByteEncoder(msg.Body),
		Timestamp: time.Now(),
	}
	if msg.Key != "" {
		pm.Key = sarama.StringEncoder(msg.Key)
	}
	for k, v := range msg.Headers {
		pm.Headers = append(pm.Headers, sarama.RecordHeader{Key: []byte(k), Value: []byte(v)})
	}
	return pm
}
