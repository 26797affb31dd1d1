package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Env       string // dev|prod
	HTTPAddr  string
	PublicURL string // base URL used in invite links

	DBDriver string
	DBDSN    string

	BlobBasePath string // submission uploads

	AuthSecret     string
	JWTTTLHours    int
	InviteTTLHours int

	CORSOrigins []string

	MailDriver     string // console|sendgrid
	MailFrom       string
	MailFromName   string
	SendgridAPIKey string

	// School information system (grade export). Either a static token
	// or OAuth2 client credentials; the token URL switches between them.
	SISBaseURL      string
	SISToken        string
	SISTokenURL     string
	SISClientID     string
	SISClientSecret string

	LogPretty bool
	LogLevel  string // debug|info|warn|error
}

// FromEnv reads configuration from the environment, loading a .env file
// first when one exists in the working directory.
func FromEnv() Config {
	if _, err := os.Stat(".env"); err == nil {
		_ = godotenv.Load(".env")
	}

	env := envOr("ENV", "dev")
	return Config{
		Env:       env,
		HTTPAddr:  envOr("HTTP_ADDR", ":8080"),
		PublicURL: strings.TrimSuffix(envOr("PUBLIC_URL", "http://localhost:3000"), "/"),

		DBDriver: envOr("DB_DRIVER", "sqlite"),
		DBDSN:    envOr("DB_DSN", ""),

		BlobBasePath: envOr("BLOB_BASE_PATH", "./data"),

		AuthSecret:     envOr("AUTH_SECRET", "projectmaat-dev-secret"),
		JWTTTLHours:    envInt("JWT_TTL_HOURS", 8),
		InviteTTLHours: envInt("INVITE_TTL_HOURS", 14*24),

		CORSOrigins: csvOr("CORS_ORIGINS", "http://localhost:3000,http://localhost:5173"),

		MailDriver:     envOr("MAIL_DRIVER", "console"),
		MailFrom:       envOr("MAIL_FROM", "noreply@projectmaat.nl"),
		MailFromName:   envOr("MAIL_FROM_NAME", "Projectmaat"),
		SendgridAPIKey: os.Getenv("SENDGRID_API_KEY"),

		SISBaseURL:      os.Getenv("SIS_BASE_URL"),
		SISToken:        os.Getenv("SIS_TOKEN"),
		SISTokenURL:     os.Getenv("SIS_TOKEN_URL"),
		SISClientID:     os.Getenv("SIS_CLIENT_ID"),
		SISClientSecret: os.Getenv("SIS_CLIENT_SECRET"),

		LogPretty: envBool("LOG_PRETTY", env == "dev"),
		LogLevel:  envOr("LOG_LEVEL", "info"),
	}
}

func envOr(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}

func envBool(k string, def bool) bool {
	switch os.Getenv(k) {
	case "1", "true", "TRUE", "yes", "YES":
		return true
	case "0", "false", "FALSE", "no", "NO":
		return false
	default:
		return def
	}
}

func envInt(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	n := 0
	for _, c := range v {
		if c < '0' || c > '9' {
			return def
		}
		n = n*10 + int(c-'0')
	}
	return n
}

func csvOr(k, def string) []string {
	v := envOr(k, def)
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
