package config

import (
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config holds application configuration (env + Viper).
type Config struct {
	Env         string
	Port        string
	DatabaseURL string
	RedisURL    string

	// Ledger policy knobs, all fixed-point integers.
	PlatformFeeBps     int64  // platform fee taken on principal release
	MinInterestRateBps int64  // allowed [min,max] band for pool creation
	MaxInterestRateBps int64
	RepaymentGraceSecs int64  // grace past duration (from funding) before default
	PlatformWallet     string // destination for retained platform fees

	FrontendURLEndsWith string
	DevPassword         string
	AdminKey            string // gates sweep/clear-halt/audit admin routes
}

// Load loads config from env and optional .env file.
func Load() (*Config, error) {
	viper.SetConfigFile(".env")
	_ = viper.ReadInConfig()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	port := viper.GetString("PORT")
	if port == "" {
		port = "8080"
	}
	env := viper.GetString("APP_ENV")
	if env == "" {
		env = "development"
	}

	dbURL := viper.GetString("DATABASE_URL_DEV")
	if env == "production" {
		dbURL = viper.GetString("DATABASE_URL_PROD")
	} else if env == "test" {
		dbURL = viper.GetString("DATABASE_URL_TEST")
	}
	if dbURL == "" {
		dbURL = os.Getenv("DATABASE_URL_DEV")
	}

	feeBps := viper.GetInt64("PLATFORM_FEE_BPS")
	if feeBps == 0 {
		feeBps = 250 // 2.5%
	}
	minRate := viper.GetInt64("MIN_INTEREST_RATE_BPS")
	if minRate == 0 {
		minRate = 100 // 1%
	}
	maxRate := viper.GetInt64("MAX_INTEREST_RATE_BPS")
	if maxRate == 0 {
		maxRate = 3000 // 30%
	}
	grace := viper.GetInt64("REPAYMENT_GRACE_SECONDS")
	if grace == 0 {
		grace = 30 * 24 * 60 * 60
	}
	platformWallet := viper.GetString("PLATFORM_WALLET")
	if platformWallet == "" {
		platformWallet = "platform:fees"
	}

	return &Config{
		Env:                 env,
		Port:                port,
		DatabaseURL:         dbURL,
		RedisURL:            viper.GetString("REDIS_URL"),
		PlatformFeeBps:      feeBps,
		MinInterestRateBps:  minRate,
		MaxInterestRateBps:  maxRate,
		RepaymentGraceSecs:  grace,
		PlatformWallet:      platformWallet,
		FrontendURLEndsWith: viper.GetString("FRONTEND_URL_ENDS_WITH"),
		DevPassword:         viper.GetString("DEV_PASSWORD"),
		AdminKey:            viper.GetString("ADMIN_KEY"),
	}, nil
}
