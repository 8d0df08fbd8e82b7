package mqtt

import (
	"testing"

	"github.com/berfenger/gridwatch/internal/config"

	"github.com/stretchr/testify/assert"
)

func TestTopics(t *testing.T) {

	assert := assert.New(t)

	client := &MQTTClient{cfg: config.MQTTConfig{BaseTopic: "loremTopic"}}

	assert.Equal("loremTopic/bridge/state", client.BridgeStateTopic())
	assert.Equal("loremTopic/bridge/info", client.BridgeInfoTopic())
	assert.Equal("loremTopic/sensor/active_power/state", client.SensorStateTopic("active_power"))
}

func TestOptsFromConfig(t *testing.T) {

	assert := assert.New(t)

	cfg := &config.Config{MQTT: config.MQTTConfig{
		Host:      "localhost",
		Port:      1883,
		BaseTopic: "gridwatch",
	}}
	opts := OptsFromConfig(cfg)

	assert.True(opts.WillEnabled)
	assert.Equal("gridwatch/bridge/state", opts.WillTopic)
	assert.Equal(MQTT_PAYLOAD_OFFLINE, string(opts.WillPayload))
}
