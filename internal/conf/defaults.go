// conf/defaults.go default values for settings
package conf

import (
	"time"

	"github.com/spf13/viper"
)

// Sets default values for the configuration.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("main.name", "ScreamDet-Go")
	viper.SetDefault("main.log.enabled", true)
	viper.SetDefault("main.log.path", "screamdet.log")

	viper.SetDefault("detector.modelpath", "model/scream_forest.json")
	viper.SetDefault("detector.scalerpath", "model/scaler.json")
	viper.SetDefault("detector.threshold", 0.80)
	viper.SetDefault("detector.cooldown", 30*time.Second)
	viper.SetDefault("detector.samplerate", 22050)
	viper.SetDefault("detector.logallevaluations", true)

	viper.SetDefault("alert.channels", []string{"sms", "email"})
	viper.SetDefault("alert.maxretries", 3)
	viper.SetDefault("alert.backoffbase", 1*time.Second)
	viper.SetDefault("alert.backoffmax", 30*time.Second)
	viper.SetDefault("alert.timeout", 45*time.Second)

	viper.SetDefault("alert.sms.enabled", false)
	viper.SetDefault("alert.sms.accountsid", "")
	viper.SetDefault("alert.sms.authtoken", "")
	viper.SetDefault("alert.sms.from", "")
	viper.SetDefault("alert.sms.recipients", []string{})

	viper.SetDefault("alert.email.enabled", false)
	viper.SetDefault("alert.email.host", "smtp.gmail.com")
	viper.SetDefault("alert.email.port", 465)
	viper.SetDefault("alert.email.username", "")
	viper.SetDefault("alert.email.password", "")
	viper.SetDefault("alert.email.from", "")
	viper.SetDefault("alert.email.recipients", []string{})

	viper.SetDefault("alert.escalation.enabled", true)
	viper.SetDefault("alert.escalation.minscreams", 2)
	viper.SetDefault("alert.escalation.window", 30*time.Second)
	viper.SetDefault("alert.escalation.emergencynumber", "112")
	viper.SetDefault("alert.escalation.simulatecalls", true)

	viper.SetDefault("output.sqlite.enabled", true)
	viper.SetDefault("output.sqlite.path", "screamdet.db")

	viper.SetDefault("location.ipinfotoken", "")
	viper.SetDefault("location.latitude", 0.000)
	viper.SetDefault("location.longitude", 0.000)
}
