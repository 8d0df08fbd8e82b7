package actor

import (
	"testing"
	"time"

	"github.com/berfenger/gridwatch/internal/core/domain"
	"github.com/berfenger/gridwatch/internal/util/actorutil"
	"github.com/berfenger/gridwatch/pkg/analyzer"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestPollMeasurementModbusActor(t *testing.T) {

	assert := assert.New(t)

	reader := analyzer.CreateTestPowerAnalyzerReader(
		analyzer.TestPollStep{Measurement: analyzer.TestMeasurement(1500, 100, 0)},
	)

	logger := zap.Must(zap.NewDevelopment())

	as := actorutil.NewActorSystemWithZapLogger(logger)

	context := as.Root

	props := actor.PropsFromProducer(func() actor.Actor { return NewModbusActor(reader, 2*time.Second, logger) })
	pid := context.Spawn(props)

	time.Sleep(1 * time.Second)

	msg := domain.PollMeasurementRequest{}
	result, err := context.RequestFuture(pid, msg, 15*time.Second).Result()
	if err != nil {
		t.Error(err)
		return
	}
	resp := result.(domain.PollMeasurementResponse)

	assert.False(resp.HasResponseError(), "poll response error")
	assert.Equal(float64(1500), resp.Measurement.ActivePowerWatt, "active power")
	assert.Equal(uint64(100), resp.Measurement.EnergyImportedWh, "imported energy")

	context.Stop(pid)

	as.Shutdown()
}

func TestPollMeasurementTransportError(t *testing.T) {

	assert := assert.New(t)

	reader := analyzer.CreateTestPowerAnalyzerReader(
		analyzer.TestPollStep{Err: analyzer.ErrTransport},
		analyzer.TestPollStep{Measurement: analyzer.TestMeasurement(500, 200, 0)},
	)

	logger := zap.Must(zap.NewDevelopment())

	as := actorutil.NewActorSystemWithZapLogger(logger)
	context := as.Root

	props := actor.PropsFromProducer(func() actor.Actor { return NewModbusActor(reader, 2*time.Second, logger) })
	pid := context.Spawn(props)

	time.Sleep(1 * time.Second)

	// first poll fails at the protocol level, the connection stays up
	result, err := context.RequestFuture(pid, domain.PollMeasurementRequest{}, 15*time.Second).Result()
	if err != nil {
		t.Error(err)
		return
	}
	resp := result.(domain.PollMeasurementResponse)
	assert.True(resp.HasResponseError(), "first poll should fail")
	assert.ErrorIs(resp.GetResponseError(), analyzer.ErrTransport, "error kind")

	// next poll succeeds on the same connection
	result, err = context.RequestFuture(pid, domain.PollMeasurementRequest{}, 15*time.Second).Result()
	if err != nil {
		t.Error(err)
		return
	}
	resp = result.(domain.PollMeasurementResponse)
	assert.False(resp.HasResponseError(), "second poll should succeed")
	assert.Equal(float64(500), resp.Measurement.ActivePowerWatt, "active power")

	context.Stop(pid)

	as.Shutdown()
}
