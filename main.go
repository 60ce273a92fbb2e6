package main

import (
	"net"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/Nithish-ponnusamy/new-k8s/cluster"
	"github.com/Nithish-ponnusamy/new-k8s/config"
	"github.com/Nithish-ponnusamy/new-k8s/core"
	libs "github.com/Nithish-ponnusamy/new-k8s/libs"
	logger "github.com/Nithish-ponnusamy/new-k8s/logging"
	"github.com/Nithish-ponnusamy/new-k8s/observability"
	grpcserver "github.com/Nithish-ponnusamy/new-k8s/server"
)

var log *zerolog.Logger

// ==================== //
// == Initialization == //
// ==================== //

func init() {
	// 1. load configurations
	libs.LoadConfigurationFile()
	config.LoadDefaultConfig()

	// 2. setup logger
	logLevel := viper.GetString("logging.level")
	logger.SetLogLevel(logLevel)
	log = logger.GetInstance()

	// 3. setup the tables in db
	libs.CreateTablesIfNotExist(config.GetCfgDB())

	// 4. register metrics
	observability.RegisterMetrics()
}

// ========== //
// == Main == //
// ========== //

func main() {
	client := cluster.ConnectK8sClient()
	if client == nil {
		log.Error().Msg("failed to create k8s client")
		os.Exit(1)
	}

	gateway := cluster.NewK8sGateway(client)

	resolver := cluster.NewServiceResolver()
	resolver.Refresh()

	engine := core.NewEngine(gateway, resolver)
	engine.SetNamespaceLister(cluster.ClusterNamespaceLister{})
	engine.LoadBundles()

	log.Info().Msgf("cluster scan: %d namespaces, %d service ports",
		len(cluster.GetNamespacesFromK8sClient()), len(cluster.GetServicesFromK8sClient()))

	// metrics endpoint
	metricsAddr := viper.GetString("metrics.addr")
	if metricsAddr == "" {
		metricsAddr = ":2112"
	}
	go func() {
		http.Handle("/metrics", promhttp.Handler())
		if err := http.ListenAndServe(metricsAddr, nil); err != nil {
			log.Error().Msgf("metrics endpoint failed: %s", err.Error())
		}
	}()

	// create server
	lis, err := net.Listen("tcp", ":"+grpcserver.PortNumber)
	if err != nil {
		log.Error().Msgf("gRPC server failed to listen: %v", err)
		os.Exit(1)
	}
	server := grpcserver.GetNewServer(engine)

	go func() {
		sig := <-libs.GetOSSigChannel()
		log.Info().Msgf("got a signal %v, shutting down", sig)

		engine.StopWorkers()
		server.GracefulStop()
	}()

	log.Info().Msgf("intent policy engine gRPC server on %s port started", grpcserver.PortNumber)
	if err := server.Serve(lis); err != nil {
		log.Error().Msgf("failed to serve: %s", err)
	}
}
