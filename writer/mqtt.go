package writer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	appconfig "entsoeflow/config"
	"entsoeflow/logger"
	"entsoeflow/models"
)

const mqttTimeout = 10 * time.Second

// MQTTPublisher publishes retained day reports and automation plans for
// home automation controllers.
type MQTTPublisher struct {
	client   mqtt.Client
	prefix   string
	qos      byte
	retained bool
	log      *logger.Log
}

func NewMQTTPublisher(cfg appconfig.MQTTConfig) (*MQTTPublisher, error) {
	if cfg.Broker == "" {
		return nil, fmt.Errorf("mqtt broker not configured")
	}
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectTimeout(mqttTimeout)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	log := logger.GetLogger()
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.WithComponent("mqtt_publisher").WithError(err).Warn("mqtt connection lost")
	})

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(mqttTimeout) {
		return nil, fmt.Errorf("mqtt connect to %s timed out", cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect to %s: %w", cfg.Broker, err)
	}

	p := newMQTTPublisher(client, cfg)
	p.log.WithComponent("mqtt_publisher").WithFields(logger.Fields{
		"broker": cfg.Broker,
		"prefix": p.prefix,
	}).Info("mqtt publisher connected")
	return p, nil
}

func newMQTTPublisher(client mqtt.Client, cfg appconfig.MQTTConfig) *MQTTPublisher {
	return &MQTTPublisher{
		client:   client,
		prefix:   strings.Trim(cfg.TopicPrefix, "/"),
		qos:      cfg.QoS,
		retained: cfg.Retained,
		log:      logger.GetLogger(),
	}
}

func (p *MQTTPublisher) Name() string {
	return "mqtt"
}

// Topic is {prefix}/{zone}/{kind}.
func (p *MQTTPublisher) Topic(zone, kind string) string {
	if p.prefix == "" {
		return zone + "/" + kind
	}
	return p.prefix + "/" + zone + "/" + kind
}

func (p *MQTTPublisher) PublishReport(ctx context.Context, r models.ZoneReport) error {
	return p.publish(ctx, p.Topic(r.Zone, "report"), r)
}

func (p *MQTTPublisher) PublishPlan(ctx context.Context, plan models.AutomationPlan) error {
	return p.publish(ctx, p.Topic(plan.Zone, "plan"), plan)
}

func (p *MQTTPublisher) publish(ctx context.Context, topic string, v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", topic, err)
	}
	token := p.client.Publish(topic, p.qos, p.retained, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(mqttTimeout):
		return fmt.Errorf("publish %s timed out", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	p.log.WithComponent("mqtt_publisher").WithFields(logger.Fields{
		"topic": topic,
		"bytes": len(payload),
	}).Debug("message published")
	return nil
}

func (p *MQTTPublisher) Close() error {
	p.client.Disconnect(250)
	return nil
}
