package server

import (
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/Nithish-ponnusamy/new-k8s/core"
	"github.com/Nithish-ponnusamy/new-k8s/feedconsumer"
	logger "github.com/Nithish-ponnusamy/new-k8s/logging"
)

const PortNumber = "9089"

var log *zerolog.Logger

func init() {
	log = logger.GetInstance()
}

// ================= //
// == gRPC server == //
// ================= //

// GetNewServer builds the gRPC server with health and reflection
// services and starts the engine workers. The feed consumer starts only
// when a kafka broker is configured.
func GetNewServer(engine *core.Engine) *grpc.Server {
	s := grpc.NewServer()
	grpc_health_v1.RegisterHealthServer(s, health.NewServer())

	reflection.Register(s)

	if viper.GetString("feed-consumer.kafka.bootstrap-servers") != "" {
		feedconsumer.StartConsumer(engine.Detector())
	}

	engine.StartWorkers()

	log.Info().Msg("engine workers started")

	return s
}
