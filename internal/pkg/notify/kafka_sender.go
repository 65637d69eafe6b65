package notify

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"

	"nexus-delivery/internal/pkg/mq"
)

// KafkaSender 把通知写入 notifications topic，按用户分区。
type KafkaSender struct {
	writer mq.MessageWriter
}

func NewKafkaSender(writer mq.MessageWriter) *KafkaSender {
	return &KafkaSender{writer: writer}
}

func (s *KafkaSender) Send(ctx context.Context, ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return errors.Wrap(err, "marshal notification")
	}
	return errors.Wrap(mq.ProduceMessage(ctx, s.writer, []byte(ev.UserID), body), "produce notification")
}
