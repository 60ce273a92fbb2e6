package feedconsumer

import (
	"encoding/json"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/confluentinc/confluent-kafka-go/kafka"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	cfg "github.com/Nithish-ponnusamy/new-k8s/config"
	logger "github.com/Nithish-ponnusamy/new-k8s/logging"
	"github.com/Nithish-ponnusamy/new-k8s/types"
)

const ( // status
	STATUS_RUNNING = "running"
	STATUS_IDLE    = "idle"
)

// Ingester accepts observed events off the feed.
type Ingester interface {
	Ingest(event types.ObservedEvent) error
}

// ====================== //
// == Global Variables == //
// ====================== //

var numOfConsumers int
var consumers []*FeedConsumer

var Status string

var waitG sync.WaitGroup
var stopChan chan struct{}

var log *zerolog.Logger

func init() {
	log = logger.GetInstance()

	waitG = sync.WaitGroup{}
	Status = STATUS_IDLE

	consumers = []*FeedConsumer{}
}

// =================== //
// == Feed Consumer == //
// =================== //

type FeedConsumer struct {
	id          int
	kafkaConfig kafka.ConfigMap
	topics      []string

	ingester Ingester
}

func (fc *FeedConsumer) setupKafkaConfig() {
	bootstrapServers := viper.GetString("feed-consumer.kafka.bootstrap-servers")
	brokerAddressFamily := viper.GetString("feed-consumer.kafka.broker-address-family")
	sessionTimeoutMs := viper.GetString("feed-consumer.kafka.session-timeout-ms")
	autoOffsetReset := viper.GetString("feed-consumer.kafka.auto-offset-reset")

	groupID := viper.GetString("feed-consumer.kafka.group-id") + strconv.FormatUint(uint64(time.Now().Unix()), 10)

	fc.topics = cfg.GetCurrentCfg().ConfigFeedConsumer.Topics
	if len(fc.topics) == 0 {
		fc.topics = []string{"observed-events"}
	}

	sslEnabled := viper.GetBool("feed-consumer.kafka.ssl.enabled")
	securityProtocol := viper.GetString("feed-consumer.kafka.security.protocol")
	sslCALocation := viper.GetString("feed-consumer.kafka.ca.location")
	sslKeystoreLocation := viper.GetString("feed-consumer.kafka.keystore.location")
	sslKeystorePassword := viper.GetString("feed-consumer.kafka.keystore.pword")

	fc.kafkaConfig = kafka.ConfigMap{
		"enable.auto.commit":      true,
		"auto.commit.interval.ms": 1000,
		"bootstrap.servers":       bootstrapServers,
		"broker.address.family":   brokerAddressFamily,
		"group.id":                groupID,
		"session.timeout.ms":      sessionTimeoutMs,
		"auto.offset.reset":       autoOffsetReset,
	}

	if sslEnabled {
		if err := fc.kafkaConfig.SetKey("security.protocol", securityProtocol); err != nil {
			log.Error().Msg(err.Error())
		}
		if err := fc.kafkaConfig.SetKey("ssl.ca.location", sslCALocation); err != nil {
			log.Error().Msg(err.Error())
		}
		if err := fc.kafkaConfig.SetKey("ssl.keystore.location", sslKeystoreLocation); err != nil {
			log.Error().Msg(err.Error())
		}
		if err := fc.kafkaConfig.SetKey("ssl.keystore.password", sslKeystorePassword); err != nil {
			log.Error().Msg(err.Error())
		}
	}
}

func (fc *FeedConsumer) startConsumer() {
	defer waitG.Done()

	c, err := kafka.NewConsumer(&fc.kafkaConfig)
	if err != nil {
		log.Error().Msgf("Failed to create consumer: %s", err)
		return
	}

	err = c.SubscribeTopics(fc.topics, nil)
	if err != nil {
		log.Error().Msgf("Failed to subscribe topics: %s", err)
		return
	}

	log.Info().Msgf("Starting consumer %d, topics: %v", fc.id, fc.topics)

	run := true
	for run {
		select {
		case <-stopChan:
			log.Info().Msgf("Got a signal to terminate the consumer %d", fc.id)
			run = false

		default:
			ev := c.Poll(100)
			if ev == nil {
				continue
			}

			switch e := ev.(type) {
			case *kafka.Message:
				topic := ""
				if e.TopicPartition.Topic != nil {
					topic = *e.TopicPartition.Topic
				}

				if err := fc.processMessage(topic, e.Value); err != nil {
					log.Error().Msg(err.Error())
				}
			case kafka.Error:
				log.Error().Msgf("Error: %v: %v\n", e.Code(), e)
				if e.Code() == kafka.ErrAllBrokersDown {
					run = false
				}
			default:
				log.Debug().Msgf("Ignored %v\n", e)
			}
		}
	}

	log.Info().Msgf("Closing consumer %d", fc.id)
	if err := c.Close(); err != nil {
		log.Error().Msg(err.Error())
	}
}

// processMessage decodes one feed record and hands it to the detector
// queue. Records without a kind inherit it from the topic name.
func (fc *FeedConsumer) processMessage(topic string, message []byte) error {
	event := types.ObservedEvent{}

	if err := json.Unmarshal(message, &event); err != nil {
		return err
	}

	if event.Kind == "" {
		if strings.Contains(topic, "syscall") {
			event.Kind = types.EventKindSyscall
		} else {
			event.Kind = types.EventKindConnection
		}
	}

	if event.Time.IsZero() {
		event.Time = time.Now().UTC()
	}

	// a saturated queue is not a consumer failure; the drop is counted
	// by the detector
	if err := fc.ingester.Ingest(event); err != nil {
		log.Debug().Msg(err.Error())
	}

	return nil
}

// =================== //
// == Consumer Main == //
// =================== //

func StartConsumer(ingester Ingester) {
	numOfConsumers = cfg.GetCurrentCfg().ConfigFeedConsumer.NumberOfConsumers
	if numOfConsumers <= 0 {
		numOfConsumers = 1
	}

	if Status == STATUS_RUNNING {
		log.Info().Msg("There is already running consumer(s)")
		return
	}

	stopChan = make(chan struct{})

	n := 0
	for n < numOfConsumers {
		c := &FeedConsumer{
			id:       n + 1,
			ingester: ingester,
		}

		c.setupKafkaConfig()
		consumers = append(consumers, c)
		waitG.Add(1)
		go c.startConsumer()
		n++
	}

	Status = STATUS_RUNNING

	log.Info().Msgf("%d feed consumer(s) started", numOfConsumers)
}

func StopConsumer() {
	if Status != STATUS_RUNNING {
		log.Info().Msg("There is no running consumer(s)")
		return
	}

	Status = STATUS_IDLE
	close(stopChan)
	waitG.Wait()

	consumers = []*FeedConsumer{} // clear

	log.Info().Msg("Feed consumer(s) stopped")
}
