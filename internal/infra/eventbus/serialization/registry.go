// Package serialization converts event envelopes to and from their wire
// format. Every envelope is carried as a protobuf Struct: the routing metadata
// sits beside the event payload, which is the JSON form of the domain event.
//
// Decoders are registered per event type so consumers get the concrete domain
// event back. Events without a decoder are delivered as map[string]any.
package serialization

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/workielk/workie/internal/domain/events"
	"github.com/workielk/workie/internal/domain/marketplace"
	"github.com/workielk/workie/internal/domain/progress"
)

// DeserializeFunc converts a JSON payload back into a domain object.
type DeserializeFunc func(data []byte) (any, error)

var (
	mu                   sync.RWMutex
	deserializerRegistry = map[events.EventType]DeserializeFunc{}
)

// RegisterDeserializeFunc registers a deserialization function for a given event type.
func RegisterDeserializeFunc(eventType events.EventType, fn DeserializeFunc) {
	mu.Lock()
	defer mu.Unlock()
	deserializerRegistry[eventType] = fn
}

// decodeAs returns a DeserializeFunc that decodes into a T.
func decodeAs[T any]() DeserializeFunc {
	return func(data []byte) (any, error) {
		var v T
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, err
		}
		return v, nil
	}
}

func init() {
	RegisterEventSerializers()
}

// RegisterEventSerializers registers decoders for every event the domain raises.
func RegisterEventSerializers() {
	RegisterDeserializeFunc(progress.EventTypeStageAdvanced, decodeAs[progress.StageAdvancedEvent]())
	RegisterDeserializeFunc(progress.EventTypePaymentRequested, decodeAs[progress.PaymentRequestedEvent]())
	RegisterDeserializeFunc(progress.EventTypePaymentSettled, decodeAs[progress.PaymentSettledEvent]())
	RegisterDeserializeFunc(progress.EventTypePaymentFailed, decodeAs[progress.PaymentFailedEvent]())
	RegisterDeserializeFunc(progress.EventTypeReviewSubmitted, decodeAs[progress.ReviewSubmittedEvent]())
	RegisterDeserializeFunc(progress.EventTypeJobClosed, decodeAs[progress.JobClosedEvent]())

	RegisterDeserializeFunc(marketplace.EventTypePostingCreated, decodeAs[marketplace.PostingCreatedEvent]())
	RegisterDeserializeFunc(marketplace.EventTypePostingClosed, decodeAs[marketplace.PostingClosedEvent]())
	RegisterDeserializeFunc(marketplace.EventTypeApplicationSubmitted, decodeAs[marketplace.ApplicationSubmittedEvent]())
}

// Envelope field names on the wire.
const (
	fieldType      = "type"
	fieldKey       = "key"
	fieldTimestamp = "timestamp"
	fieldHeaders   = "headers"
	fieldPayload   = "payload"
)

// SerializeEventEnvelope encodes env as a protobuf Struct.
func SerializeEventEnvelope(env events.EventEnvelope) ([]byte, error) {
	payload, err := payloadValue(env.Payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload for %s: %w", env.Type, err)
	}

	headers := make(map[string]any, len(env.Headers))
	for k, v := range env.Headers {
		headers[k] = v
	}
	headerStruct, err := structpb.NewStruct(headers)
	if err != nil {
		return nil, fmt.Errorf("encode headers for %s: %w", env.Type, err)
	}

	msg := &structpb.Struct{Fields: map[string]*structpb.Value{
		fieldType:      structpb.NewStringValue(string(env.Type)),
		fieldKey:       structpb.NewStringValue(env.Key),
		fieldTimestamp: structpb.NewStringValue(env.Timestamp.UTC().Format(time.RFC3339Nano)),
		fieldHeaders:   structpb.NewStructValue(headerStruct),
		fieldPayload:   payload,
	}}

	return proto.Marshal(msg)
}

func payloadValue(payload any) (*structpb.Value, error) {
	if payload == nil {
		return structpb.NewNullValue(), nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	v := new(structpb.Value)
	if err := v.UnmarshalJSON(raw); err != nil {
		return nil, err
	}
	return v, nil
}

// DeserializeEventEnvelope decodes data produced by SerializeEventEnvelope.
func DeserializeEventEnvelope(data []byte) (events.EventEnvelope, error) {
	var msg structpb.Struct
	if err := proto.Unmarshal(data, &msg); err != nil {
		return events.EventEnvelope{}, fmt.Errorf("unmarshal envelope: %w", err)
	}

	fields := msg.GetFields()
	env := events.EventEnvelope{
		Type: events.EventType(fields[fieldType].GetStringValue()),
		Key:  fields[fieldKey].GetStringValue(),
	}
	if env.Type == "" {
		return events.EventEnvelope{}, fmt.Errorf("envelope has no event type")
	}

	if ts := fields[fieldTimestamp].GetStringValue(); ts != "" {
		t, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return events.EventEnvelope{}, fmt.Errorf("parse timestamp of %s: %w", env.Type, err)
		}
		env.Timestamp = t
	}

	if h := fields[fieldHeaders].GetStructValue(); h != nil && len(h.GetFields()) > 0 {
		env.Headers = make(map[string]string, len(h.GetFields()))
		for k, v := range h.GetFields() {
			env.Headers[k] = v.GetStringValue()
		}
	}

	payload, err := DeserializePayload(env.Type, fields[fieldPayload])
	if err != nil {
		return events.EventEnvelope{}, err
	}
	env.Payload = payload

	return env, nil
}

// DeserializePayload converts a wire payload back into a domain object using
// the decoder registered for eventType.
func DeserializePayload(eventType events.EventType, v *structpb.Value) (any, error) {
	if v == nil {
		return nil, nil
	}
	if _, isNull := v.GetKind().(*structpb.Value_NullValue); isNull {
		return nil, nil
	}

	mu.RLock()
	fn, ok := deserializerRegistry[eventType]
	mu.RUnlock()
	if !ok {
		return v.AsInterface(), nil
	}

	raw, err := v.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("encode payload of %s: %w", eventType, err)
	}
	payload, err := fn(raw)
	if err != nil {
		return nil, fmt.Errorf("decode payload of %s: %w", eventType, err)
	}
	return payload, nil
}
