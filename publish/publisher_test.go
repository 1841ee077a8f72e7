package publish

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/icodeforyou/pvpc-go/hours"
	"github.com/icodeforyou/pvpc-go/prices"
	"github.com/icodeforyou/pvpc-go/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakeToken struct {
	err error
}

func (t fakeToken) Wait() bool                     { return true }
func (t fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (t fakeToken) Error() error { return t.err }

type message struct {
	topic    string
	qos      byte
	retained bool
	payload  string
}

// fakeClient implements only what the publisher uses.
type fakeClient struct {
	mqtt.Client
	messages []message
	err      error
}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload any) mqtt.Token {
	c.messages = append(c.messages, message{topic, qos, retained, string(payload.([]byte))})
	return fakeToken{err: c.err}
}

type fakeRecorder struct {
	results []string
}

func (r *fakeRecorder) ObservePublish(topic string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.results = append(r.results, topic+":"+result)
}

func TestPublishCurrentPrice(t *testing.T) {
	client := &fakeClient{}
	recorder := &fakeRecorder{}
	p := NewWithClient(testLogger, client, "home/pvpc")
	p.SetRecorder(recorder)

	err := p.PublishCurrentPrice(types.NewPricePoint(hours.At("2023-08-25", 10), decimal.RequireFromString("0.123456")))
	require.NoError(t, err)

	require.Len(t, client.messages, 1)
	msg := client.messages[0]
	assert.Equal(t, "home/pvpc/price/current", msg.topic)
	assert.True(t, msg.retained)
	assert.Equal(t, byte(1), msg.qos)
	assert.JSONEq(t, `{"dateTime":"2023-08-25T10:00:00","price":0.12346,"cents":12}`, msg.payload)
	assert.Equal(t, []string{"home/pvpc/price/current:ok"}, recorder.results)
}

func TestPublishRating(t *testing.T) {
	client := &fakeClient{}
	p := NewWithClient(testLogger, client, "")

	err := p.PublishRating("2023-08-25", prices.LiveStatus{
		DayRating:        types.DayRatingGood,
		DailyAverage:     decimal.RequireFromString("0.15"),
		ThirtyDayAverage: decimal.RequireFromString("0.2"),
		InCheapPeriod:    true,
	})
	require.NoError(t, err)

	require.Len(t, client.messages, 1)
	assert.Equal(t, "pvpc/rating/today", client.messages[0].topic)
	assert.JSONEq(t, `{"date":"2023-08-25","rating":"GOOD","average":0.15,"thirtyDayAverage":0.2,"inCheapPeriod":true,"inExpensivePeriod":false}`,
		client.messages[0].payload)
}

func TestPublishError(t *testing.T) {
	client := &fakeClient{err: errors.New("not connected")}
	recorder := &fakeRecorder{}
	p := NewWithClient(testLogger, client, "pvpc")
	p.SetRecorder(recorder)

	err := p.PublishCurrentPrice(types.NewPricePoint(hours.At("2023-08-25", 10), decimal.Zero))
	assert.ErrorContains(t, err, "not connected")
	assert.Equal(t, []string{"pvpc/price/current:error"}, recorder.results)
}

func TestMqttLogger(t *testing.T) {
	var records []string
	logger := slog.New(recordHandler{records: &records})
	l := mqttLogger{logger: logger, level: slog.LevelWarn}

	l.Printf("lost %d", 1)
	l.Println("again")

	assert.Equal(t, []string{"WARN lost 1", "WARN again"}, records)
}

type recordHandler struct {
	slog.Handler
	records *[]string
}

func (h recordHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h recordHandler) Handle(_ context.Context, r slog.Record) error {
	*h.records = append(*h.records, r.Level.String()+" "+r.Message)
	return nil
}
