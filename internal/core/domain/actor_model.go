package domain

import "github.com/berfenger/gridwatch/pkg/analyzer"

const (
	ACTOR_ID_MASTER = "master"
	ACTOR_ID_MODBUS = "modbus"
	ACTOR_ID_POLLER = "poller"
	ACTOR_ID_MQTT   = "mqtt"
)

type ActorHealthRequest struct {
	ActorRequestMixIn
}

type ActorHealthResponse struct {
	ActorResponseMixIn
	Id      string
	Healthy bool
	State   string
}

// PollMeasurementRequest asks the modbus actor for one full poll cycle:
// every register block read sequentially, then decoded.
type PollMeasurementRequest struct {
	ActorRequestMixIn
}

type PollMeasurementResponse struct {
	ActorResponseMixIn
	Measurement *analyzer.Measurement
}

// GetLastSampleRequest returns the poller's most recent successful cycle.
type GetLastSampleRequest struct {
	ActorRequestMixIn
}

type GetLastSampleResponse struct {
	ActorResponseMixIn
	Measurement *analyzer.Measurement
	Sample      *CumulativeEnergySample
}

// PublishSensorUpdateRequest carries one event-stream event to the MQTT
// actor for publishing.
type PublishSensorUpdateRequest struct {
	ActorRequestMixIn
	Event  any
	Retain bool
}

type PublishSensorUpdateResponse struct {
	ActorResponseMixIn
}

type PublishMessageRequest struct {
	ActorRequestMixIn
	Topic   string
	Payload string
	Retain  bool
}

type PublishMessageResponse struct {
	ActorResponseMixIn
}
