package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/workflow/internal/flagx"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":8000")
//	-g string   gRPC bind address (e.g., ":50051")
//	-k string   storage backend (postgres|memory)
//	-d string   PostgreSQL URI; empty starts without a store
//	-s string   JWT HMAC secret key
//	-t int      session token validity, minutes
//	-r int      reset token validity, minutes
//	-b string   reset token backend (postgres|redis)
//	-m string   mail backend (log|smtp)
//	-l string   log level
//
// Other arguments are filtered out first with flagx.FilterArgs, so the
// config file flag does not collide with this set.
func parseFlags(config *Config) error {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-g", "-k", "-d", "-s", "-t", "-r", "-b", "-m", "-l"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "HTTP address and port")
	fs.StringVar(&config.EndpointAddrGRPC, "g", config.EndpointAddrGRPC, "gRPC address and port")
	fs.StringVar(&config.StorageBackend, "k", config.StorageBackend, "storage backend (postgres|memory)")
	fs.StringVar(&config.DatabaseURI, "d", config.DatabaseURI, "database URI")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")

	accessTokenValidity := fs.Int("t", int(config.AccessTokenValidityDuration.Minutes()), "session token validity (in minutes)")
	resetTokenValidity := fs.Int("r", int(config.ResetTokenValidityDuration.Minutes()), "reset token validity (in minutes)")

	fs.StringVar(&config.ResetTokenBackend, "b", config.ResetTokenBackend, "reset token backend (postgres|redis)")
	fs.StringVar(&config.MailBackend, "m", config.MailBackend, "mail backend (log|smtp)")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")

	if err := fs.Parse(args); err != nil {
		return err
	}

	// minute flags override earlier layers only when given
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "t":
			config.AccessTokenValidityDuration = time.Duration(*accessTokenValidity) * time.Minute
		case "r":
			config.ResetTokenValidityDuration = time.Duration(*resetTokenValidity) * time.Minute
		}
	})
	return nil
}
