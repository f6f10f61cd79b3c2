package main

import (
	"os"
	"strings"

	"github.com/op/go-logging"
	"github.com/spf13/viper"

	"github.com/gcc-florda/tp0-sistemas-distribuidos-I/client/common"
)

var log = logging.MustGetLogger("log")

// InitConfig Function that uses viper library to parse configuration parameters.
// Viper is configured to read variables from both environment variables and the
// config file ./config.yaml. Environment variables takes precedence over parameters
// defined in the configuration file. If some of the variables cannot be parsed,
// an error is returned
func InitConfig() (*viper.Viper, error) {
	v := viper.New()

	v.AutomaticEnv()
	v.SetEnvPrefix("cli")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.BindEnv("id")
	v.BindEnv("server.address")
	v.BindEnv("batch.maxAmount")
	v.BindEnv("bets.file")
	v.BindEnv("log.level")

	v.SetConfigFile("./config.yaml")
	if err := v.ReadInConfig(); err != nil {
		log.Infof("action: config | result: fail | error: %v", err)
	}

	return v, nil
}

// InitLogger Receives the log level to be set in go-logging as a string. This method
// parses the string and set the level to the parsed one only if the level is valid
func InitLogger(logLevel string) error {
	baseBackend := logging.NewLogBackend(os.Stdout, "", 0)
	format := logging.MustStringFormatter(
		`%{time:2006-01-02 15:04:05} %{level:.5s}     %{message}`,
	)
	backendFormatter := logging.NewBackendFormatter(baseBackend, format)

	backendLeveled := logging.AddModuleLevel(backendFormatter)
	logLevelCode, err := logging.LogLevel(logLevel)
	if err != nil {
		return err
	}
	backendLeveled.SetLevel(logLevelCode, "")

	logging.SetBackend(backendLeveled)
	return nil
}

// PrintConfig Print all the configuration parameters of the program.
// For debugging purposes only
func PrintConfig(v *viper.Viper) {
	log.Infof("action: config | result: success | client_id: %s | server_address: %s | batch_maxAmount: %d | bets_file: %s | log_level: %s",
		v.GetString("id"),
		v.GetString("server.address"),
		v.GetInt32("batch.maxAmount"),
		v.GetString("bets.file"),
		v.GetString("log.level"),
	)
}

func main() {
	v, err := InitConfig()
	if err != nil {
		log.Criticalf("%s", err)
		os.Exit(1)
	}

	if err := InitLogger(v.GetString("log.level")); err != nil {
		log.Criticalf("%s", err)
		os.Exit(1)
	}

	PrintConfig(v)

	client := common.NewClient(common.ClientConfig{
		ID:            v.GetString("id"),
		ServerAddress: v.GetString("server.address"),
		BetsFilePath:  v.GetString("bets.file"),
		BatchLimit:    v.GetInt32("batch.maxAmount"),
	})

	client.StartClientLoop()
}
