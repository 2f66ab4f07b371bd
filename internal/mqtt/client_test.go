package mqtt

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/berfenger/smartess/internal/config"
	"github.com/berfenger/smartess/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSwitchCommandParse(t *testing.T) {

	assert := assert.New(t)

	r := switchCommandExtractor("smartess")

	cmd, err := parseSwitchCommand(r, "smartess/switch/dispatch_hold/command", []byte("ON"))
	assert.NoError(err)
	assert.Equal("dispatch_hold", cmd.DeviceId, "device extract")
	assert.Equal(MQTT_PAYLOAD_ON, cmd.Payload, "payload normalized")

	cmd, err = parseSwitchCommand(r, "smartess/switch/dispatch_dry_run/command", []byte(" off\n"))
	assert.NoError(err)
	assert.Equal(MQTT_PAYLOAD_OFF, cmd.Payload)
}

func TestSwitchCommandParseFail(t *testing.T) {

	assert := assert.New(t)

	r := switchCommandExtractor("smartess")

	_, err := parseSwitchCommand(r, "smartess/switch/dispatch_hold/state", []byte("on"))
	assert.ErrorIs(err, ErrInvalidCommand, "state topic")

	_, err = parseSwitchCommand(r, "other/smartess/switch/dispatch_hold/command", []byte("on"))
	assert.ErrorIs(err, ErrInvalidCommand, "anchored base topic")

	_, err = parseSwitchCommand(r, "smartess/switch/dispatch_hold/command", []byte("maybe"))
	assert.ErrorIs(err, ErrInvalidPayload, "payload")
}

func TestClientId(t *testing.T) {
	assert.Equal(t, "fixed", ClientId(config.MQTTConfig{ClientId: "fixed"}))

	a := ClientId(config.MQTTConfig{})
	b := ClientId(config.MQTTConfig{})
	assert.True(t, strings.HasPrefix(a, "smartess_"))
	assert.Len(t, a, len("smartess_")+12)
	assert.NotEqual(t, a, b)
}

func TestHADiscoveryMessages(t *testing.T) {

	cfg := &config.Config{MQTT: config.MQTTConfig{Host: "localhost", Port: 1883, BaseTopic: "smartess"}}
	client := CreateMQTTClient(cfg, OptsFromConfig(cfg), nil, nil)

	bridge := domain.BridgeDevice("smartess")
	ess := domain.ESSDevice("192.168.1.10", bridge)

	sensors := domain.DispatchSensors(ess)
	require.NotEmpty(t, sensors)

	for _, s := range sensors {
		msg := GenericSensorToHADiscoveryMessage(client, s)
		assert.Equal(t, client.BridgeStateTopic(), msg.AvTopic)
		switch s.SensorType {
		case domain.SENSOR_TYPE_BINARY:
			assert.Equal(t, "smartess/binary_sensor/"+s.Id+"/state", msg.StateTopic)
			assert.Equal(t, MQTT_PAYLOAD_ON, msg.PayloadOn)
		default:
			assert.Equal(t, "smartess/sensor/"+s.Id+"/state", msg.StateTopic)
		}
		assert.Equal(t, "homeassistant/"+s.SensorType+"/"+ess.Id+"/"+s.Id+"/config", HADiscoverySensorTopic(s))
	}

	bridgeMsg := GenericSensorToHADiscoveryMessage(client, domain.BridgeSensors(bridge)[0])
	assert.Equal(t, "smartess/bridge/state", bridgeMsg.StateTopic)
	assert.Equal(t, MQTT_PAYLOAD_ONLINE, bridgeMsg.PayloadOn)

	sw := domain.DispatchSwitches(ess)[0]
	swMsg := GenericSwitchToHADiscoveryMessage(client, sw)
	assert.Equal(t, "smartess/switch/dispatch_hold/command", swMsg.CommandTopic)
	assert.Equal(t, "smartess/switch/dispatch_hold/state", swMsg.StateTopic)

	payload, err := json.Marshal(swMsg)
	require.NoError(t, err)
	assert.Contains(t, string(payload), `"identifiers":["`+ess.Id+`"]`)
}
