package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	wolfcomm "github.com/mtielen/wolf-comm"
)

func main() {
	configPath := flag.String("config", "config/wolf-mqtt-bridge.yml", "path to the configuration file")
	once := flag.Bool("once", false, "run a single poll cycle and exit")
	flag.Parse()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := LoadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Str("config_path", *configPath).Msg("failed to load config")
	}

	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		log.Warn().Str("level", cfg.Log.Level).Msg("invalid log level, using info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	opts := []wolfcomm.Option{
		wolfcomm.WithRegion(cfg.Portal.Region),
		wolfcomm.WithLogger(log.Logger),
	}
	if cfg.Portal.ExpertMode {
		opts = append(opts, wolfcomm.WithExpertMode())
	}
	client, err := wolfcomm.NewClient(cfg.Portal.Username, cfg.Portal.Password, opts...)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create portal client")
	}

	publisher, err := connectMQTT(&cfg.MQTT)
	if err != nil {
		log.Fatal().Err(err).Str("broker", cfg.MQTT.BrokerURL).Msg("failed to connect to mqtt broker")
	}
	defer publisher.Disconnect(250)

	b := &bridge{client: client, publisher: publisher, cfg: cfg}

	if *once {
		if err := b.pollOnce(); err != nil {
			log.Fatal().Err(err).Msg("poll cycle failed")
		}
		if err := client.CloseSystem(); err != nil {
			log.Warn().Err(err).Msg("failed to close portal session")
		}
		return
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(cfg.Bridge.PollInterval)
	defer ticker.Stop()

	log.Info().Dur("interval", cfg.Bridge.PollInterval).Msg("bridge started")
	b.poll()

	for {
		select {
		case sig := <-sigChan:
			log.Info().Str("signal", sig.String()).Msg("shutting down")
			if err := client.CloseSystem(); err != nil {
				log.Warn().Err(err).Msg("failed to close portal session")
			}
			return
		case <-ticker.C:
			b.poll()
		}
	}
}

// bridge caches the discovered devices and their parameter lists; only the
// live values are re-read every cycle.
type bridge struct {
	client    *wolfcomm.Client
	publisher mqtt.Client
	cfg       *Config

	devices    []wolfcomm.Device
	parameters map[int64][]wolfcomm.Parameter
}

func (b *bridge) poll() {
	if err := b.pollOnce(); err != nil {
		log.Error().Err(err).Msg("poll cycle failed")
		if b.client.LastFailed() {
			log.Warn().Msg("retry after re-authorization failed as well, values may be stale")
		}
	}
}

func (b *bridge) pollOnce() error {
	if b.devices == nil {
		devices, err := b.client.ListDevices()
		if err != nil {
			return fmt.Errorf("list devices: %w", err)
		}
		b.devices = devices
		b.parameters = make(map[int64][]wolfcomm.Parameter)
		log.Info().Int("devices", len(devices)).Msg("discovered devices")
	}

	for _, device := range b.devices {
		online, err := b.client.GetSystemState(device.ID, device.GatewayID)
		if err != nil {
			return fmt.Errorf("fetch state of %s: %w", device.Name, err)
		}
		b.publishOnline(device, online)
		if !online {
			log.Warn().Str("device", device.Name).Msg("gateway offline, skipping values")
			continue
		}

		params, ok := b.parameters[device.ID]
		if !ok {
			params, err = b.client.GetParameters(device.GatewayID, device.ID)
			if err != nil {
				return fmt.Errorf("fetch parameters of %s: %w", device.Name, err)
			}
			b.parameters[device.ID] = params
			log.Info().Str("device", device.Name).Int("parameters", len(params)).Msg("discovered parameters")
		}

		values, err := b.client.GetParameterValues(device.GatewayID, device.ID, params)
		if err != nil {
			return fmt.Errorf("fetch values of %s: %w", device.Name, err)
		}
		b.publishValues(device, params, values)
	}
	return nil
}

func (b *bridge) publishOnline(device wolfcomm.Device, online bool) {
	topic := fmt.Sprintf("%s/%d/online", b.cfg.MQTT.TopicPrefix, device.ID)
	payload := "false"
	if online {
		payload = "true"
	}
	b.publish(topic, []byte(payload))
}

func (b *bridge) publishValues(device wolfcomm.Device, params []wolfcomm.Parameter, values []wolfcomm.Value) {
	byID := make(map[int64]wolfcomm.Parameter, len(params))
	for _, p := range params {
		byID[p.ValueID] = p
	}

	for _, v := range values {
		param, ok := byID[v.ValueID]
		if !ok {
			continue
		}
		message := map[string]interface{}{
			"device":    device.Name,
			"name":      param.Name,
			"value":     v.Value,
			"state":     v.State,
			"unit":      param.Unit(),
			"read_only": param.ReadOnly,
			"ts":        time.Now().Unix(),
		}
		payload, err := json.Marshal(message)
		if err != nil {
			log.Error().Err(err).Int64("value_id", v.ValueID).Msg("failed to marshal value message")
			continue
		}
		b.publish(fmt.Sprintf("%s/%d/%d", b.cfg.MQTT.TopicPrefix, device.ID, v.ValueID), payload)
	}
}

func (b *bridge) publish(topic string, payload []byte) {
	token := b.publisher.Publish(topic, b.cfg.MQTT.QoS, true, payload)
	if token.WaitTimeout(5*time.Second) && token.Error() != nil {
		log.Error().Err(token.Error()).Str("topic", topic).Msg("failed to publish")
	}
}

func connectMQTT(cfg *MQTTConfig) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.BrokerURL)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectTimeout(10 * time.Second)
	opts.SetKeepAlive(30 * time.Second)
	opts.SetOnConnectHandler(func(mqtt.Client) {
		log.Info().Str("broker", cfg.BrokerURL).Msg("mqtt connected")
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Error().Err(err).Msg("mqtt connection lost")
	})

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("mqtt connect timed out")
	}
	if err := token.Error(); err != nil {
		return nil, err
	}
	return client, nil
}
