package audit

import (
	"context"
	"fmt"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/timestamppb"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink publishes events keyed by user id, so one user's events stay
// ordered within a partition. The value is a protobuf google.protobuf.Struct
// (see EncodeEvent); the trace context travels in the message headers.
type KafkaSink struct {
	w     messageWriter
	topic string
}

func NewKafkaSink(brokers []string, topic string) *KafkaSink {
	return &KafkaSink{
		w: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			AllowAutoTopicCreation: true,
		},
		topic: topic,
	}
}

func (s *KafkaSink) Emit(ctx context.Context, e Event) error {
	value, err := EncodeEvent(e)
	if err != nil {
		return fmt.Errorf("audit: encode event: %w", err)
	}

	ctx, span := otel.Tracer("authkeeper/audit").Start(ctx, "kafka.produce "+s.topic,
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.destination.name", s.topic),
			attribute.String("messaging.operation", "publish"),
			attribute.String("audit.event_type", e.EventType),
		),
	)
	defer span.End()

	hdrs := headerCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, hdrs)

	msg := kafka.Message{Key: []byte(e.UserID), Value: value, Time: e.Timestamp, Headers: hdrs.toKafka()}
	if err := s.w.WriteMessages(ctx, msg); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "kafka write failed")
		return fmt.Errorf("audit: write to %s: %w", s.topic, err)
	}
	return nil
}

func (s *KafkaSink) Close() error { return s.w.Close() }

// EncodeEvent marshals e as a google.protobuf.Struct. The timestamp is a
// nested struct with the fields of google.protobuf.Timestamp:
//
//	{event_type, user_id, record_id, email, success, error,
//	 timestamp: {seconds, nanos}}
func EncodeEvent(e Event) ([]byte, error) {
	ts := timestamppb.New(e.Timestamp)
	if err := ts.CheckValid(); err != nil {
		return nil, err
	}
	payload, err := structpb.NewStruct(map[string]any{
		"event_type": e.EventType,
		"user_id":    e.UserID,
		"record_id":  e.RecordID,
		"email":      e.Email,
		"success":    e.Success,
		"error":      e.Error,
		"timestamp": map[string]any{
			"seconds": ts.GetSeconds(),
			"nanos":   ts.GetNanos(),
		},
	})
	if err != nil {
		return nil, err
	}
	return proto.Marshal(payload)
}

// DecodeEvent is the inverse of EncodeEvent, for consumers of the topic.
func DecodeEvent(value []byte) (Event, error) {
	var payload structpb.Struct
	if err := proto.Unmarshal(value, &payload); err != nil {
		return Event{}, fmt.Errorf("audit: decode event: %w", err)
	}
	f := payload.GetFields()
	tsf := f["timestamp"].GetStructValue().GetFields()
	ts := &timestamppb.Timestamp{
		Seconds: int64(tsf["seconds"].GetNumberValue()),
		Nanos:   int32(tsf["nanos"].GetNumberValue()),
	}
	if err := ts.CheckValid(); err != nil {
		return Event{}, fmt.Errorf("audit: decode timestamp: %w", err)
	}
	return Event{
		Timestamp: ts.AsTime(),
		EventType: f["event_type"].GetStringValue(),
		UserID:    f["user_id"].GetStringValue(),
		RecordID:  f["record_id"].GetStringValue(),
		Email:     f["email"].GetStringValue(),
		Success:   f["success"].GetBoolValue(),
		Error:     f["error"].GetStringValue(),
	}, nil
}

// headerCarrier lets the OTel propagator write into Kafka headers.
type headerCarrier map[string]string

func (h headerCarrier) Get(k string) string { return h[k] }
func (h headerCarrier) Set(k, v string)     { h[k] = v }
func (h headerCarrier) Keys() []string {
	ks := make([]string, 0, len(h))
	for k := range h {
		ks = append(ks, k)
	}
	return ks
}

func (h headerCarrier) toKafka() []kafka.Header {
	hs := make([]kafka.Header, 0, len(h))
	for k, v := range h {
		hs = append(hs, kafka.Header{Key: k, Value: []byte(v)})
	}
	return hs
}
