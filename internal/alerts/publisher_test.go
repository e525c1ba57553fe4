package alerts

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleet_tracker/internal/models"
)

type recordingSink struct {
	name string
	err  error
	got  []models.Alert
}

func (r *recordingSink) Name() string { return r.name }

func (r *recordingSink) Publish(_ context.Context, _ string, list []models.Alert) error {
	r.got = append(r.got, list...)
	return r.err
}

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	f.msgs = append(f.msgs, msgs...)
	return f.err
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func sampleAlert(deviceID string) models.Alert {
	return models.Alert{
		ID:        uuid.New(),
		DeviceID:  deviceID,
		Timestamp: time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC),
		Type:      models.AlertLowFuel,
		Message:   "15.0% remaining",
	}
}

func TestFanoutContinuesPastFailingSink(t *testing.T) {
	bad := &recordingSink{name: "bad", err: errors.New("down")}
	good := &recordingSink{name: "good"}
	list := []models.Alert{sampleAlert("DEV-1")}

	err := NewFanout(bad, good).Publish(context.Background(), "DEV-1", list)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad")
	assert.Len(t, good.got, 1)
}

func TestFanoutSkipsEmpty(t *testing.T) {
	sink := &recordingSink{name: "s"}
	require.NoError(t, NewFanout(sink).Publish(context.Background(), "DEV-1", nil))
	assert.Empty(t, sink.got)
}

func TestKafkaPublisher(t *testing.T) {
	w := &fakeWriter{}
	p := NewKafkaPublisher(w)
	a := sampleAlert("DEV-1")

	require.NoError(t, p.Publish(context.Background(), "DEV-1", []models.Alert{a}))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "DEV-1", string(w.msgs[0].Key))
	assert.Equal(t, "alert_type", w.msgs[0].Headers[0].Key)
	assert.Equal(t, "LOW_FUEL", string(w.msgs[0].Headers[0].Value))

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &decoded))
	assert.Equal(t, a.ID.String(), decoded["alert_id"])
	assert.Equal(t, false, decoded["is_read"])

	w.err = errors.New("broker unavailable")
	assert.Error(t, p.Publish(context.Background(), "DEV-1", []models.Alert{a}))

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}
