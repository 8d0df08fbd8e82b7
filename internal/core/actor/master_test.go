package actor

import (
	"fmt"
	"testing"
	"time"

	adactor "github.com/berfenger/gridwatch/internal/adapter/actor"
	"github.com/berfenger/gridwatch/internal/adapter/store"
	"github.com/berfenger/gridwatch/internal/core/domain"
	"github.com/berfenger/gridwatch/internal/core/service"
	"github.com/berfenger/gridwatch/internal/metrics"
	"github.com/berfenger/gridwatch/internal/util"
	"github.com/berfenger/gridwatch/pkg/analyzer"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestMasterActor(t *testing.T) {

	as := actor.NewActorSystem()
	context := as.Root

	cfg := util.LoadTestConfig()
	logCfg := zap.NewDevelopmentConfig()
	logCfg.Level = zap.NewAtomicLevelAt(cfg.LogLevel)
	logger := zap.Must(logCfg.Build())

	memStore := store.NewMemoryStore()
	reconciler := service.NewEnergyReconciler(32, cfg.Poller.MaxEnergyDeltaWh, logger)

	props := actor.PropsFromProducer(func() actor.Actor {
		return NewMasterOfPuppetsActor(cfg, func() *adactor.ModbusActor {
			return adactor.NewModbusActor(analyzer.CreateTestPowerAnalyzerReader(), 2*time.Second, logger)
		}, nil, memStore, reconciler, metrics.New(), logger)
	})
	pid, err := context.SpawnNamed(props, "master")
	if err != nil {
		t.Error(err)
		return
	}

	time.Sleep(2 * time.Second)

	res, err := context.RequestFuture(pid, domain.ActorHealthRequest{}, 10*time.Second).Result()
	if err != nil {
		t.Error(err)
		//return
	}
	healthResp, ok := res.(domain.ActorHealthResponse)
	assert.True(t, ok)
	fmt.Printf("Health response: %+v\n", healthResp)
	assert.NotNil(t, healthResp)

	assert.True(t, healthResp.Healthy, "healthy is true")

	// last sample requests are forwarded to the poller
	res, err = context.RequestFuture(pid, domain.GetLastSampleRequest{}, 10*time.Second).Result()
	if err != nil {
		t.Error(err)
		return
	}
	sampleResp, ok := res.(domain.GetLastSampleResponse)
	assert.True(t, ok)
	assert.NotNil(t, sampleResp.Measurement)

	context.Stop(pid)

	as.Shutdown()
}
