// Package publish pushes the current price and today's rating to an MQTT
// broker for home automation. Messages are retained so new subscribers get
// the latest values at once.
package publish

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/icodeforyou/pvpc-go/convert"
	"github.com/icodeforyou/pvpc-go/prices"
	"github.com/icodeforyou/pvpc-go/types"
	"github.com/shopspring/decimal"
)

const publishTimeout = 10 * time.Second

type Options struct {
	Broker      string
	Port        int
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string
}

// Recorder counts publish results, see the metrics package.
type Recorder interface {
	ObservePublish(topic string, err error)
}

type Publisher struct {
	client   mqtt.Client
	logger   *slog.Logger
	prefix   string
	recorder Recorder
}

type CurrentPrice struct {
	DateTime string  `json:"dateTime"`
	Price    float64 `json:"price"`
	Cents    int64   `json:"cents"`
}

type TodayRating struct {
	Date              string          `json:"date"`
	Rating            types.DayRating `json:"rating"`
	Average           float64         `json:"average"`
	ThirtyDayAverage  float64         `json:"thirtyDayAverage"`
	InCheapPeriod     bool            `json:"inCheapPeriod"`
	InExpensivePeriod bool            `json:"inExpensivePeriod"`
}

func New(logger *slog.Logger, opts Options) *Publisher {
	mqttOpts := mqtt.NewClientOptions()
	mqttOpts.AddBroker(fmt.Sprintf("tcp://%s:%d", opts.Broker, opts.Port))
	mqttOpts.SetClientID(opts.ClientID)
	mqttOpts.SetUsername(opts.Username)
	mqttOpts.SetPassword(opts.Password)
	mqttOpts.SetAutoReconnect(true)
	mqttOpts.SetConnectRetry(true)
	mqttOpts.OnConnect = func(client mqtt.Client) {
		logger.Info("MQTT connected", slog.String("broker", opts.Broker))
	}
	mqttOpts.OnConnectionLost = func(client mqtt.Client, err error) {
		logger.Warn("MQTT connection lost", slog.Any("error", err))
	}

	bridgeMqttLogs(slog.Default().With("module", "mqtt"))

	return NewWithClient(logger, mqtt.NewClient(mqttOpts), opts.TopicPrefix)
}

func NewWithClient(logger *slog.Logger, client mqtt.Client, prefix string) *Publisher {
	if prefix == "" {
		prefix = "pvpc"
	}
	return &Publisher{client: client, logger: logger, prefix: prefix}
}

func (p *Publisher) SetRecorder(r Recorder) {
	p.recorder = r
}

func (p *Publisher) Connect() error {
	p.logger.Debug("connecting MQTT client")
	token := p.client.Connect()
	if !token.WaitTimeout(publishTimeout) {
		// Connect keeps retrying in the background.
		p.logger.Warn("MQTT broker not reachable yet, retrying in background")
		return nil
	}
	return token.Error()
}

func (p *Publisher) Disconnect() {
	p.client.Disconnect(250)
}

func (p *Publisher) PriceTopic() string {
	return p.prefix + "/price/current"
}

func (p *Publisher) RatingTopic() string {
	return p.prefix + "/rating/today"
}

func (p *Publisher) PublishCurrentPrice(pp types.PricePoint) error {
	return p.publish(p.PriceTopic(), CurrentPrice{
		DateTime: pp.When.IsoString(),
		Price:    roundFloat(pp.Price),
		Cents:    convert.Cents(pp.Price),
	})
}

func (p *Publisher) PublishRating(date string, status prices.LiveStatus) error {
	return p.publish(p.RatingTopic(), TodayRating{
		Date:              date,
		Rating:            status.DayRating,
		Average:           roundFloat(status.DailyAverage),
		ThirtyDayAverage:  roundFloat(status.ThirtyDayAverage),
		InCheapPeriod:     status.InCheapPeriod,
		InExpensivePeriod: status.InExpensivePeriod,
	})
}

func (p *Publisher) publish(topic string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", topic, err)
	}

	token := p.client.Publish(topic, 1, true, data)
	if !token.WaitTimeout(publishTimeout) {
		err = fmt.Errorf("publish to %s: timeout", topic)
	} else if token.Error() != nil {
		err = fmt.Errorf("publish to %s: %w", topic, token.Error())
	}

	if p.recorder != nil {
		p.recorder.ObservePublish(topic, err)
	}
	if err == nil {
		p.logger.Debug("published", slog.String("topic", topic))
	}
	return err
}

func roundFloat(d decimal.Decimal) float64 {
	return convert.ToFloat(convert.RoundDecimal(d, 5))
}
