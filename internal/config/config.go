package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort string
	AppEnv  string

	AWSRegion      string
	AWSEndpointURL string // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string
	AWSSecretKey   string
	DynamoTables   DynamoTables
	SNSRegion      string

	RedisAddr     string
	RedisPassword string
	PostgresDSN   string

	// OTPStoreBackend selects where OTP records, bridge tokens and session
	// markers live: "redis", "dynamo" or "memory".
	OTPStoreBackend string
	// LedgerBackend selects the address verification store: "dynamo" or "postgres".
	LedgerBackend string

	JWTPrivateKeyPath string
	JWTPublicKeyPath  string
	JWTExpiry         time.Duration

	AllowedOrigins []string // CORS allowed origins
	// TrustProxyHeaders takes the client address from X-Forwarded-For/X-Real-Ip.
	// Enable it only when the service is reachable solely through a proxy that
	// overwrites those headers.
	TrustProxyHeaders bool

	Verification Verification
}

// DynamoTables holds the DynamoDB table name for each entity.
type DynamoTables struct {
	Customers           string
	Addresses           string
	Carts               string
	AddressVerification string
	KeyValue            string
	Counters            string
}

// Verification holds the phone verification feature flags and time windows.
type Verification struct {
	Enabled                   bool
	EnableRegistration        bool
	OptionalRegistration      bool
	OTPMessage                string
	AddressEnabled            bool
	RequireUnverifiedExisting bool
	PerPhoneSkip              bool
	PhoneLocale               string
	OTPTTL                    time.Duration
	BridgeTokenTTL            time.Duration
	RegistrationVerifiedTTL   time.Duration
	SessionMarkerTTL          time.Duration
	SMSTimeout                time.Duration
	StoreTimeout              time.Duration
}

// RegistrationRequired reports whether account creation must be preceded by a
// verified phone.
func (v Verification) RegistrationRequired() bool {
	return v.Enabled && v.EnableRegistration && !v.OptionalRegistration
}

// AddressVerificationEnabled reports whether address and checkout phones are gated.
func (v Verification) AddressVerificationEnabled() bool {
	return v.Enabled && v.AddressEnabled
}

// Load reads all configuration from environment variables.
func Load() *Config {
	return &Config{
		AppPort:        getEnv("APP_PORT", "3000"),
		AppEnv:         getEnv("APP_ENV", "development"),
		AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
		AWSEndpointURL: getEnv("AWS_ENDPOINT_URL", ""),
		AWSAccessKeyID: getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
		DynamoTables: DynamoTables{
			Customers:           getEnv("DYNAMO_TABLE_CUSTOMERS", "customers"),
			Addresses:           getEnv("DYNAMO_TABLE_ADDRESSES", "customer_addresses"),
			Carts:               getEnv("DYNAMO_TABLE_CARTS", "carts"),
			AddressVerification: getEnv("DYNAMO_TABLE_ADDRESS_VERIFICATION", "address_phone_verification"),
			KeyValue:            getEnv("DYNAMO_TABLE_KV", "otp_kv"),
			Counters:            getEnv("DYNAMO_TABLE_COUNTERS", "counters"),
		},
		SNSRegion:         getEnv("SNS_REGION", "us-east-1"),
		RedisAddr:         getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:     getEnv("REDIS_PASSWORD", ""),
		PostgresDSN:       getEnv("POSTGRES_DSN", ""),
		OTPStoreBackend:   getEnv("OTP_STORE_BACKEND", "redis"),
		LedgerBackend:     getEnv("LEDGER_BACKEND", "dynamo"),
		JWTPrivateKeyPath: getEnv("JWT_PRIVATE_KEY_PATH", "./private_key.pem"),
		JWTPublicKeyPath:  getEnv("JWT_PUBLIC_KEY_PATH", "./public_key.pem"),
		JWTExpiry:         time.Duration(getEnvInt("JWT_EXPIRY_DAYS", 7)) * 24 * time.Hour,
		AllowedOrigins:    strings.Split(getEnv("ALLOWED_ORIGINS", "*"), ","),
		TrustProxyHeaders: getEnvBool("TRUST_PROXY_HEADERS", false),
		Verification: Verification{
			Enabled:                   getEnvBool("OTP_ENABLED", true),
			EnableRegistration:        getEnvBool("OTP_ENABLE_REGISTRATION", true),
			OptionalRegistration:      getEnvBool("OTP_OPTIONAL_REGISTRATION", false),
			OTPMessage:                getEnv("OTP_MESSAGE", "Your verification code is: {otp}"),
			AddressEnabled:            getEnvBool("ADDRESS_PHONE_VERIFICATION_ENABLED", true),
			RequireUnverifiedExisting: getEnvBool("ADDRESS_REQUIRE_UNVERIFIED_EXISTING", false),
			PerPhoneSkip:              getEnvBool("ADDRESS_PER_PHONE_SKIP", true),
			PhoneLocale:               getEnv("PHONE_LOCALE", "TR"),
			OTPTTL:                    getEnvDuration("OTP_TTL", 300*time.Second),
			BridgeTokenTTL:            getEnvDuration("BRIDGE_TOKEN_TTL", 300*time.Second),
			RegistrationVerifiedTTL:   getEnvDuration("REGISTRATION_VERIFIED_TTL", 600*time.Second),
			SessionMarkerTTL:          getEnvDuration("SESSION_MARKER_TTL", time.Hour),
			SMSTimeout:                getEnvDuration("SMS_TIMEOUT", 10*time.Second),
			StoreTimeout:              getEnvDuration("STORE_TIMEOUT", 2*time.Second),
		},
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

// getEnvDuration accepts Go duration strings ("5m") or a bare number of seconds.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil && d > 0 {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil && n > 0 {
		return time.Duration(n) * time.Second
	}
	return fallback
}
