package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Lookup resolves an environment-style key.
type Lookup func(key string) (string, bool)

// EnvSource layers the process environment over the key/value pairs of an optional .env file.
// A missing file is not an error.
func EnvSource(envFile string) Lookup {
	fileVals := map[string]string{}
	if envFile != "" {
		if vals, err := godotenv.Read(envFile); err == nil {
			fileVals = vals
		}
	}
	return func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			return v, true
		}
		v, ok := fileVals[key]
		return v, ok && v != ""
	}
}

// MapSource adapts a plain map, mostly for tests.
func MapSource(vals map[string]string) Lookup {
	return func(key string) (string, bool) {
		v, ok := vals[key]
		return v, ok && v != ""
	}
}

// ApplyOverrides replaces config leaves with values from lookup. Numeric keys that fail to parse are reported.
func (c *Config) ApplyOverrides(lookup Lookup) error {
	if lookup == nil {
		return nil
	}
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok {
			*dst = strings.TrimSpace(v)
		}
	}
	var bad []string
	num := func(key string, set func(string) error) {
		if v, ok := lookup(key); ok {
			if err := set(strings.TrimSpace(v)); err != nil {
				bad = append(bad, key)
			}
		}
	}

	str("HTTP_ADDR", &c.App.HTTPAddr)
	str("METRICS_ADDR", &c.App.MetricsAddr)
	str("LOG_LEVEL", &c.App.LogLevel)
	str("JITO_BLOCK_ENGINE_URL", &c.Relay.BlockEngineURL)
	str("JITO_AUTH_UUID", &c.Relay.AuthUUID)
	str("SOLANA_RPC_URL", &c.Dex.RpcURL)
	str("SOLANA_COMMITMENT", &c.Dex.Commitment)
	str("SOLANA_PRIVATE_KEY", &c.Wallet.PrivateKey)
	str("JUPITER_BASE_URL", &c.Dex.JupiterBase)
	str("JUPITER_API_KEY", &c.Dex.JupiterAPIKey)
	str("FEE_COLLECTOR", &c.Fee.Collector)
	if v, ok := lookup("WS_ORIGINS"); ok {
		c.App.WSOrigins = nil
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				c.App.WSOrigins = append(c.App.WSOrigins, o)
			}
		}
	}

	num("MAX_BUNDLE_SIZE", func(v string) error {
		n, err := strconv.Atoi(v)
		c.Relay.MaxBundleSize = pick(err, n, c.Relay.MaxBundleSize)
		return err
	})
	num("TIP_LAMPORTS", func(v string) error {
		n, err := strconv.ParseUint(v, 10, 64)
		c.Relay.TipLamports = pick(err, n, c.Relay.TipLamports)
		return err
	})
	num("FEE_BPS", func(v string) error {
		n, err := strconv.ParseInt(v, 10, 64)
		c.Fee.Bps = pick(err, n, c.Fee.Bps)
		return err
	})

	if len(bad) > 0 {
		return InvalidErr.New("unparseable override(s): %s", strings.Join(bad, ", "))
	}
	return nil
}

func pick[T any](err error, parsed, current T) T {
	if err != nil {
		return current
	}
	return parsed
}
