package libs

import (
	"crypto/rand"
	"encoding/json"
	"flag"
	"math/big"
	"os"
	"os/signal"
	"reflect"
	"syscall"

	logger "github.com/Nithish-ponnusamy/new-k8s/logging"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

var log *zerolog.Logger

var GitCommit string
var GitBranch string
var BuildDate string
var Version string

func printBuildDetails() {
	log.Info().Msgf("BUILD-INFO: commit:%v, branch: %v, date: %v, version: %v",
		GitCommit, GitBranch, BuildDate, Version)
}

func init() {
	log = logger.GetInstance()
	printBuildDetails()
}

// =================== //
// == Configuration == //
// =================== //

func LoadConfigurationFile() {
	version1 := flag.Bool("v", false, "print version and exit")
	version2 := flag.Bool("version", false, "print version and exit")

	configFilePath := flag.String("config-path", "conf/", "conf/")
	flag.Parse()

	if *version1 || *version2 {
		os.Exit(0)
	}

	viper.SetConfigName(GetEnv("CONF_FILE_NAME", "conf"))
	viper.SetConfigType("yaml")
	viper.AddConfigPath(*configFilePath)
	if err := viper.ReadInConfig(); err != nil {
		if readErr, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Panic().Msgf("No config file found at %s\n", *configFilePath)
		} else {
			log.Panic().Msgf("Error reading config file: %s\n", readErr)
		}
	}
}

// ============ //
// == Common == //
// ============ //

func DeepCopy(dst, src interface{}) {
	byt, err := json.Marshal(src)
	if err != nil {
		log.Error().Msg(err.Error())
	}

	if err := json.Unmarshal(byt, dst); err != nil {
		log.Error().Msg(err.Error())
	}
}

func GetOSSigChannel() chan os.Signal {
	c := make(chan os.Signal, 1)

	signal.Notify(c,
		syscall.SIGHUP,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGQUIT,
		os.Interrupt)

	return c
}

func GetEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}

	return fallback
}

func ContainsElement(slice interface{}, element interface{}) bool {
	switch reflect.TypeOf(slice).Kind() {
	case reflect.Slice:
		s := reflect.ValueOf(slice)

		for i := 0; i < s.Len(); i++ {
			val := s.Index(i).Interface()
			if reflect.DeepEqual(val, element) {
				return true
			}
		}
	}

	return false
}

// RandSeq - random lowercase hex-ish sequence used for bundle ids
func RandSeq(n int) string {
	var chars = []rune("0123456789abcdef")

	b := make([]rune, n)

	for i := range b {
		idx, err := rand.Int(rand.Reader, big.NewInt(int64(len(chars))))
		if err != nil {
			log.Error().Msg(err.Error())
		}
		b[i] = chars[idx.Int64()]
	}

	return string(b)
}

// ========== //
// == Time == //
// ========== //

const (
	TimeFormSimple string = "2006-01-02 15:04:05"
	TimeFormID     string = "20060102150405"
)
