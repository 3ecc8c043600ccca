package push

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/SherClockHolmes/webpush-go"
)

// Config holds the VAPID credentials and delivery knobs. It is built
// once at startup and passed into the dispatcher; nothing here is read
// from the environment after that.
type Config struct {
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	Subscriber      string        // contact address required by the push services
	TTL             int           // seconds a push service may hold an undelivered message
	AttemptTimeout  time.Duration // per-subscription delivery timeout
}

// Configured reports whether dispatch can run at all. Without VAPID
// keys the whole batch is skipped, which is a configuration condition,
// not a delivery failure.
func (c Config) Configured() bool {
	return c.VAPIDPublicKey != "" && c.VAPIDPrivateKey != ""
}

// ConfigFromEnv reads VAPID keys from the environment, generating a
// fresh pair when absent so a dev instance works out of the box.
func ConfigFromEnv() Config {
	cfg := Config{
		VAPIDPublicKey:  os.Getenv("VAPID_PUBLIC_KEY"),
		VAPIDPrivateKey: os.Getenv("VAPID_PRIVATE_KEY"),
		Subscriber:      os.Getenv("VAPID_SUBSCRIBER"),
		TTL:             60,
		AttemptTimeout:  10 * time.Second,
	}

	if cfg.Subscriber == "" {
		cfg.Subscriber = "mailto:admin@example.com"
	}
	if ttlStr := os.Getenv("PUSH_TTL"); ttlStr != "" {
		if ttl, err := strconv.Atoi(ttlStr); err == nil {
			cfg.TTL = ttl
		}
	}

	if cfg.VAPIDPublicKey == "" || cfg.VAPIDPrivateKey == "" {
		log.Println("VAPID keys not found in environment. Generating new keys...")
		privateKey, publicKey, err := webpush.GenerateVAPIDKeys()
		if err != nil {
			log.Fatal("Failed to generate VAPID keys:", err)
		}
		cfg.VAPIDPrivateKey = privateKey
		cfg.VAPIDPublicKey = publicKey
		log.Printf("Generated VAPID Keys:\nVAPID_PRIVATE_KEY=%s\nVAPID_PUBLIC_KEY=%s\n(Add these to your .env file to persist them)", privateKey, publicKey)
	}

	return cfg
}
