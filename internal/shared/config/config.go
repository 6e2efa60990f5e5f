package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/ini.v1"

	"listing_harvester/internal/shared/types"
)

// TermSeparator splits the keyword and location lists.
const TermSeparator = ",,"

// ConfigError is reported before any network activity when the run input
// cannot be used.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// IsConfigError reports whether err is (or wraps) a *ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// LoadIni loads harvester.ini on top of cfg. A missing file keeps the values
// already in cfg.
func LoadIni(cfg *types.Config, fileName string) error {
	if _, err := os.Stat(fileName); os.IsNotExist(err) {
		return nil
	}
	iniFile, err := ini.Load(fileName)
	if err != nil {
		return err
	}
	return iniFile.MapTo(cfg)
}

// LoadEnv reads an optional .env file and applies HARVEST_* overrides.
func LoadEnv(cfg *types.Config, envPath string) error {
	if envPath != "" {
		if err := godotenv.Load(envPath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("could not load env file '%s': %w", envPath, err)
		}
	}
	overrideFromEnvString(&cfg.HarvestConf.Keywords, "HARVEST_KEYWORDS")
	overrideFromEnvString(&cfg.HarvestConf.Locations, "HARVEST_LOCATIONS")
	overrideFromEnvString(&cfg.HarvestConf.Output, "HARVEST_OUTPUT")
	overrideFromEnvString(&cfg.ProxyConf.Source, "HARVEST_PROXY_SOURCE")
	overrideFromEnvString(&cfg.ProxyConf.File, "HARVEST_PROXY_FILE")
	overrideFromEnvBool(&cfg.ProxyConf.Enabled, "HARVEST_USE_PROXY")
	overrideFromEnvInt(&cfg.CommonConf.DetailWorkers, "HARVEST_DETAIL_WORKERS")
	return nil
}

// Pair is one (keyword, location) search. Both terms are already path-escaped.
type Pair struct {
	Keyword  string
	Location string
}

// RunInput is the validated input of one harvest run.
type RunInput struct {
	Pairs       []Pair
	UseProxy    bool
	ProxySource string
	ProxyFile   string
	ProxyRemote string
}

// ParseRunInput splits and validates the user-facing inputs. Terms are
// path-escaped the way the search URL expects them.
func ParseRunInput(keywords, locations string, proxy types.ProxyConf) (*RunInput, error) {
	if strings.TrimSpace(keywords) == "" {
		return nil, &ConfigError{Field: "keywords", Reason: "keyword field is missing"}
	}
	if strings.TrimSpace(locations) == "" {
		return nil, &ConfigError{Field: "locations", Reason: "location field is missing"}
	}

	kws := splitTerms(keywords)
	locs := splitTerms(locations)
	if len(kws) != len(locs) {
		return nil, &ConfigError{
			Field:  "keywords/locations",
			Reason: fmt.Sprintf("keyword and location should have the same length (%d != %d)", len(kws), len(locs)),
		}
	}

	in := &RunInput{
		UseProxy:    proxy.Enabled,
		ProxySource: strings.TrimSpace(proxy.Source),
		ProxyFile:   strings.TrimSpace(proxy.File),
		ProxyRemote: strings.TrimSpace(proxy.RemoteURL),
	}
	for i := range kws {
		if kws[i] == "" || locs[i] == "" {
			return nil, &ConfigError{Field: "keywords/locations", Reason: fmt.Sprintf("empty term at position %d", i+1)}
		}
		in.Pairs = append(in.Pairs, Pair{
			Keyword:  url.PathEscape(kws[i]),
			Location: url.PathEscape(locs[i]),
		})
	}

	if in.UseProxy && in.ProxySource == "" && in.ProxyFile == "" && in.ProxyRemote == "" {
		return nil, &ConfigError{Field: "proxy source", Reason: "proxy use requested but no proxy source configured"}
	}
	return in, nil
}

func splitTerms(s string) []string {
	parts := strings.Split(s, TermSeparator)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		out = append(out, strings.TrimSpace(p))
	}
	return out
}

func overrideFromEnvString(target *string, envName string) {
	if v := os.Getenv(envName); v != "" {
		*target = v
	}
}

func overrideFromEnvBool(target *bool, envName string) {
	envValue := os.Getenv(envName)
	if envValue != "" {
		if b, err := strconv.ParseBool(envValue); err == nil {
			*target = b
		}
	}
}

func overrideFromEnvInt(target *int, envName string) {
	envValue := os.Getenv(envName)
	if envValue != "" {
		if intValue, err := strconv.Atoi(envValue); err == nil {
			*target = intValue
		}
	}
}
