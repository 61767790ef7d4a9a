package audit

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/tiagossm/Compia20251207-sub001/mq"

	"gorm.io/gorm"
)

// DBSink inserts into audit_logs.
type DBSink struct {
	db *gorm.DB
}

func NewDBSink(db *gorm.DB) *DBSink {
	return &DBSink{db: db}
}

func (s *DBSink) Name() string { return "db" }

func (s *DBSink) Write(ctx context.Context, rec *Record) error {
	return s.db.WithContext(ctx).Create(rec).Error
}

// MQSink publishes each record as JSON, keyed by organization so one
// organization's records stay ordered within a partition.
type MQSink struct {
	producer mq.Producer
	topic    string
}

func NewMQSink(producer mq.Producer, topic string) *MQSink {
	return &MQSink{producer: producer, topic: topic}
}

func (s *MQSink) Name() string { return "kafka" }

func (s *MQSink) Write(ctx context.Context, rec *Record) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	msg := mq.NewMessage(s.topic, body).WithHeader("action", rec.Action)
	if rec.OrganizationID != nil {
		msg.WithKey(strconv.FormatInt(*rec.OrganizationID, 10))
	} else {
		msg.WithKey(rec.ActorID)
	}
	_, err = s.producer.SendSync(ctx, msg)
	return err
}
