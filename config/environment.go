package config

import (
	"fmt"
	"os"
	"strings"
)

const appEnvVar = "APP_ENV"

// Environment is the deployment stage named by APP_ENV.
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvStaging     Environment = "staging"
	EnvProduction  Environment = "production"
)

var environmentAliases = map[string]Environment{
	"dev":      EnvDevelopment,
	"local":    EnvDevelopment,
	"prod":     EnvProduction,
	"stag":     EnvStaging,
	"stagging": EnvStaging,
}

// CurrentEnvironment reads APP_ENV, defaulting to development.
func CurrentEnvironment() Environment {
	env := strings.ToLower(strings.TrimSpace(os.Getenv(appEnvVar)))
	if env == "" {
		return EnvDevelopment
	}
	if canonical, ok := environmentAliases[env]; ok {
		return canonical
	}
	return Environment(env)
}

// ProductionLike reports whether e serves real clients (staging or
// production).
func (e Environment) ProductionLike() bool {
	return e == EnvProduction || e == EnvStaging
}

// configFile is the stage specific file replacing the default path, or ""
// when the stage has none.
func (e Environment) configFile() string {
	if !e.ProductionLike() {
		return ""
	}
	return fmt.Sprintf("config/config.%s.yml", e)
}

// check applies the rules that only hold outside development. A deployed
// service must be able to reach ENTSO-E, keep responses between restarts
// and poll only zones it can validate.
func (e Environment) check(cfg *Config) error {
	if !e.ProductionLike() {
		return nil
	}
	if strings.TrimSpace(cfg.Entsoe.APIKey) == "" {
		return fmt.Errorf("entsoe.api_key is required in %s", e)
	}
	if cfg.Cache.Backend == "none" || cfg.Cache.Backend == "" {
		return fmt.Errorf("cache.backend must be file or redis in %s", e)
	}
	if cfg.Poller.Enabled {
		for _, zone := range cfg.Poller.Zones {
			if !ValidZone(zone) {
				return fmt.Errorf("poller.zones entry '%s' is invalid", zone)
			}
		}
	}
	return nil
}
