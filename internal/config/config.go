package config // package config loads application configuration from environment variables

import (
    "log"      // log is used to report configuration errors and halt execution
    "os"       // os provides access to environment variables
    "strconv"  // strconv converts strings to other types
    "time"     // time parses duration-valued variables
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  The types reflect how the values are used in
// the application: strings for identifiers and secrets, durations for the
// engine's timers.
type Config struct {
    Env           string        // application environment (e.g. "dev", "prod")
    Port          string        // HTTP port to listen on
    DBUser        string        // database username
    DBPass        string        // database password (optional)
    DBHost        string        // database host address
    DBPort        string        // database port number
    DBName        string        // database name
    JWTSecret     string        // secret used to verify JWTs
    OfferTTL      time.Duration // how long a granted offer stays purchasable
    SweepInterval time.Duration // period of the background offer sweeper
    RefundTimeout time.Duration // per-ticket deadline for provider refund calls
    WebhookSecret string        // shared secret for payment webhook signatures
    PaymentAPIURL string        // base URL of the payment provider API
    PaymentAPIKey string        // bearer token for the payment provider API
}

// Load reads configuration values from environment variables and returns a
// Config.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.
func Load() Config {
    return Config{
        Env:           must("APP_ENV"),                          // environment (dev/test/prod)
        Port:          must("APP_PORT"),                         // port to bind the HTTP server
        DBUser:        must("DB_USER"),                          // database user
        DBPass:        os.Getenv("DB_PASS"),                     // database password (empty allowed)
        DBHost:        must("DB_HOST"),                          // database host
        DBPort:        must("DB_PORT"),                          // database port
        DBName:        must("DB_NAME"),                          // database name
        JWTSecret:     must("JWT_SECRET"),                       // secret used for verifying JWTs
        OfferTTL:      envDur("OFFER_TTL", 15*time.Minute),      // purchase window per offer
        SweepInterval: envDur("SWEEP_INTERVAL", 15*time.Second), // offer sweeper period
        RefundTimeout: envDur("REFUND_TIMEOUT", 10*time.Second), // provider call deadline
        WebhookSecret: must("PAYMENT_WEBHOOK_SECRET"),           // webhook HMAC secret
        PaymentAPIURL: must("PAYMENT_API_URL"),                  // provider base URL
        PaymentAPIKey: must("PAYMENT_API_KEY"),                  // provider API key
    }
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
    v, ok := os.LookupEnv(key)
    if !ok || v == "" {
        log.Fatalf("missing required env var: %s", key)
    }
    return v
}

// mustInt is like must() but converts the retrieved string into an integer.
// If conversion fails, the application logs a fatal error and exits.
func mustInt(key string) int {
    s := must(key)
    n, err := strconv.Atoi(s)
    if err != nil {
        log.Fatalf("invalid int for %s: %q", key, s)
    }
    return n
}
