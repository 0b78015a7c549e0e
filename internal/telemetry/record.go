package telemetry

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/DevSistemasCod/multiplos-graficos-websocket/internal/errors"
)

// UnknownDeviceID is used for records that carry no device id.
const UnknownDeviceID = "desconhecido"

// Wire field names sent by the device firmware.
const (
	fieldID       = "id"
	fieldCategory = "tipo"
	fieldQuantity = "quantidade"
	fieldCount    = "contagem"
	fieldSensor   = "sensor"
	fieldDate     = "data"
	fieldTime     = "hora"

	observedLayout = "02/01/2006 15:04:05"
)

// Kind tags the shape of a Record.
type Kind int

const (
	KindUnknown Kind = iota
	KindDistribution
	KindCounter
)

func (k Kind) String() string {
	switch k {
	case KindDistribution:
		return "distribution"
	case KindCounter:
		return "counter"
	default:
		return "unknown"
	}
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) Kind {
	switch s {
	case "distribution":
		return KindDistribution
	case "counter":
		return KindCounter
	default:
		return KindUnknown
	}
}

// Record is one decoded telemetry message. Only the fields belonging to Kind
// are meaningful: Category and Quantity for KindDistribution, Count for
// KindCounter, Raw for KindUnknown.
type Record struct {
	DeviceID   string
	Kind       Kind
	Category   string
	Quantity   float64
	Count      float64
	Sensor     string
	ObservedAt time.Time
	Raw        json.RawMessage

	ambiguous bool
}

// Ambiguous reports whether the frame matched both update shapes. Such
// records are classified as distribution updates.
func (r Record) Ambiguous() bool {
	return r.ambiguous
}

// Distribution builds a distribution record.
func Distribution(deviceID, category string, quantity float64) Record {
	return Record{DeviceID: deviceID, Kind: KindDistribution, Category: category, Quantity: quantity}
}

// Counter builds a counter record.
func Counter(deviceID string, count float64) Record {
	return Record{DeviceID: deviceID, Kind: KindCounter, Count: count}
}

// Decode parses a single frame. It fails only when the frame is not a JSON
// object or a field of the matched shape has the wrong type; unrecognised
// shapes decode successfully as KindUnknown. The device id never fails.
func Decode(frame []byte) (Record, error) {
	errFactory := errors.New()

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(frame, &fields); err != nil {
		return Record{}, errFactory.Wrap(errors.ErrDecodeFrame, err)
	}
	if fields == nil {
		return Record{}, errFactory.WithData(errors.ErrDecodeFrame, "frame is not a JSON object")
	}

	rec := Record{DeviceID: deviceID(fields[fieldID])}

	hasDistribution := present(fields, fieldCategory) && present(fields, fieldQuantity)
	hasCounter := present(fields, fieldCount)

	switch {
	case hasDistribution:
		rec.Kind = KindDistribution
		rec.ambiguous = hasCounter
		if err := decodeOptional(fields, fieldCategory, &rec.Category); err != nil {
			return Record{}, err
		}
		if err := decodeOptional(fields, fieldQuantity, &rec.Quantity); err != nil {
			return Record{}, err
		}
	case hasCounter:
		rec.Kind = KindCounter
		if err := decodeOptional(fields, fieldCount, &rec.Count); err != nil {
			return Record{}, err
		}
	default:
		rec.Kind = KindUnknown
		rec.Raw = append(json.RawMessage{}, bytes.TrimSpace(frame)...)
	}

	// Firmware metadata is informational; bad values are ignored.
	_ = decodeOptional(fields, fieldSensor, &rec.Sensor)
	rec.ObservedAt = observedAt(fields)

	return rec, nil
}

// deviceID never fails. Strings are used as is, non-zero numbers and true by
// their JSON text; empty, zero, false, null and composite values fall back to
// UnknownDeviceID.
func deviceID(raw json.RawMessage) string {
	var v any
	if len(raw) == 0 || json.Unmarshal(raw, &v) != nil {
		return UnknownDeviceID
	}

	switch id := v.(type) {
	case string:
		if id != "" {
			return id
		}
	case float64:
		if id != 0 {
			return string(bytes.TrimSpace(raw))
		}
	case bool:
		if id {
			return "true"
		}
	}

	return UnknownDeviceID
}

func present(fields map[string]json.RawMessage, key string) bool {
	raw, ok := fields[key]
	return ok && !isNull(raw)
}

func isNull(raw json.RawMessage) bool {
	return string(bytes.TrimSpace(raw)) == "null"
}

func decodeOptional(fields map[string]json.RawMessage, key string, dst any) error {
	raw, ok := fields[key]
	if !ok || isNull(raw) {
		return nil
	}

	if err := json.Unmarshal(raw, dst); err != nil {
		return errors.New().WithData(errors.ErrDecodeFrame, struct {
			Field string
			Error string
		}{
			Field: key,
			Error: err.Error(),
		})
	}

	return nil
}

func observedAt(fields map[string]json.RawMessage) time.Time {
	var date, clock string
	if decodeOptional(fields, fieldDate, &date) != nil || decodeOptional(fields, fieldTime, &clock) != nil {
		return time.Time{}
	}
	if date == "" || clock == "" {
		return time.Time{}
	}

	t, err := time.ParseInLocation(observedLayout, date+" "+clock, time.Local)
	if err != nil {
		return time.Time{}
	}

	return t
}
