package config

import (
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// InitLogger configures the standard logrus logger.
func InitLogger(logLevel string) error {
	level, err := log.ParseLevel(logLevel)
	if err != nil {
		return err
	}

	customFormatter := &log.TextFormatter{
		TimestampFormat: "2006-01-02 15:04:05",
		FullTimestamp:   true,
	}
	log.SetFormatter(customFormatter)
	log.SetLevel(level)
	return nil
}

// PrintConfig logs the effective value of every key.
func PrintConfig(v *viper.Viper, keys ...string) {
	var varsString string
	for _, key := range keys {
		varsString += key + "=" + v.GetString(key) + "; "
	}
	log.Infof("action: config | result: success | variables: %s", varsString)
}
