package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/nsyszr/soilcontrol/config"
	"github.com/nsyszr/soilcontrol/pkg/cmd/cli"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string
var c = new(config.Config)
var cmdHandler = cli.NewHandler(c)

var (
	Version   = "dev-master"
	BuildTime = "undefined"
	GitHash   = "undefined"
)

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "soilcontrol",
	Short: "Soil moisture device connectivity gateway",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(cmd.UsageString())
		os.Exit(2)
	},
}

// Execute runs the gateway CLI and is called by main.main()
func Execute() {
	c.BuildTime = BuildTime
	c.BuildVersion = Version
	c.BuildHash = GitHash

	if err := RootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	RootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.soilcontrol.yml)")
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	// A missing .env file is fine, the environment is used as is.
	_ = godotenv.Load()

	if cfgFile != "" {
		// enable ability to specify config file via flag
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigType("yaml")
		viper.SetConfigName(".soilcontrol") // name of config file (without extension)
		viper.AddConfigPath("$HOME")        // adding home directory as first search path
	}
	viper.AutomaticEnv() // read in environment variables that match

	// Fetch settings
	bindEnv("PORT", 8080)
	bindEnv("HOST", "")

	bindEnv("STORAGE_DRIVER", "memory")
	bindEnv("DATABASE_URL", "")
	bindEnv("MONGO_URL", "")
	bindEnv("MONGO_DATABASE", "soilcontrol")

	bindEnv("NATS_URL", "")
	bindEnv("NATS_SUBJECT_PREFIX", "soilcontrol.v1")

	bindEnv("MQTT_URL", "")
	bindEnv("MQTT_CLIENT_ID", "soilcontrol-gateway")
	bindEnv("MQTT_USERNAME", "")
	bindEnv("MQTT_PASSWORD", "")
	bindEnv("MQTT_TOPIC_PREFIX", "soilcontrol/devices")

	bindEnv("INFLUXDB_URL", "")
	bindEnv("INFLUXDB_TOKEN", "")
	bindEnv("INFLUXDB_ORG", "")
	bindEnv("INFLUXDB_BUCKET", "soilcontrol")

	bindEnv("JWT_SECRET", "")

	bindEnv("SIGNATURE_SCHEME", "hmac-sha256")
	bindEnv("SIGNATURE_MAX_SKEW", "5m")
	bindEnv("AUTH_TIMEOUT", "0s")
	bindEnv("OUTBOX_SIZE", 64)

	bindEnv("LOG_LEVEL", "info")
	bindEnv("LOG_FORMAT", "text")

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || cfgFile != "" {
			fmt.Printf(`Config file not read because "%s"`, err)
			fmt.Println("")
		}
	}

	if err := viper.Unmarshal(c); err != nil {
		log.Fatalf("Could not read config because %s.", err)
	}

	initLogging(c)
}

func bindEnv(key string, value interface{}) {
	viper.BindEnv(key)
	viper.SetDefault(key, value)
}

func initLogging(c *config.Config) {
	if strings.EqualFold(c.LogFormat, "json") {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}

	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		log.Warnf("Unknown log level '%s', falling back to info", c.LogLevel)
		level = log.InfoLevel
	}
	log.SetLevel(level)
}
