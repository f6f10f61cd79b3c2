package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/op/go-logging"
	"github.com/spf13/viper"

	"github.com/gcc-florda/tp0-sistemas-distribuidos-I/server/common"
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
	v.SetEnvPrefix("server")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.BindEnv("default.port")
	v.BindEnv("default.listen_backlog")
	v.BindEnv("default.agencies_amount")
	v.BindEnv("default.bets_file")
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
	log.Infof("action: config | result: success | port: %d | listen_backlog: %d | agencies_amount: %d | bets_file: %s | log_level: %s",
		v.GetInt("default.port"),
		v.GetInt("default.listen_backlog"),
		v.GetInt("default.agencies_amount"),
		v.GetString("default.bets_file"),
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

	config := common.ServerConfig{
		Port:           v.GetInt("default.port"),
		ListenBacklog:  v.GetInt("default.listen_backlog"),
		AgenciesAmount: v.GetInt("default.agencies_amount"),
		BetsFilePath:   v.GetString("default.bets_file"),
	}
	store := common.NewCSVBetStore(config.BetsFilePath)

	server, err := common.NewServer(config, store)
	if err != nil {
		log.Criticalf("action: server_start | result: fail | error: %v", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()

	if err := server.Run(ctx); err != nil {
		log.Criticalf("action: server_exit | result: fail | error: %v", err)
		os.Exit(1)
	}
}
