package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"homeworkbot/internal/homework"
)

// Environment variables read at startup.
const (
	EnvPracticumToken = "PRACTICUM_TOKEN"
	EnvTelegramToken  = "TELEGRAM_TOKEN"
	EnvTelegramChatID = "TELEGRAM_CHAT_ID"
	EnvConfigPath     = "HOMEWORKBOT_CONFIG"
)

// DefaultPath is used when HOMEWORKBOT_CONFIG is unset. A missing file at
// the default path is not an error.
const DefaultPath = "./config.yaml"

// Secrets are the three required credentials. They are never written to logs.
type Secrets struct {
	PracticumToken string
	TelegramToken  string
	ChatID         int64
}

// LoadDotEnv loads KEY=VALUE pairs from path into the process environment.
// Variables already set win. A missing file is ignored.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// SecretsFromEnv reads the credentials through lookup (os.LookupEnv in
// production). Every absent or blank variable is reported as a
// homework.ConfigurationMissing error; see MissingNames.
func SecretsFromEnv(lookup func(string) (string, bool)) (Secrets, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	get := func(name string) string {
		v, _ := lookup(name)
		return strings.TrimSpace(v)
	}

	var (
		s    Secrets
		errs []error
	)
	s.PracticumToken = get(EnvPracticumToken)
	if s.PracticumToken == "" {
		errs = append(errs, homework.ConfigMissing(EnvPracticumToken))
	}
	s.TelegramToken = get(EnvTelegramToken)
	if s.TelegramToken == "" {
		errs = append(errs, homework.ConfigMissing(EnvTelegramToken))
	}
	if raw := get(EnvTelegramChatID); raw == "" {
		errs = append(errs, homework.ConfigMissing(EnvTelegramChatID))
	} else if id, err := strconv.ParseInt(raw, 10, 64); err != nil {
		errs = append(errs, &homework.Error{Kind: homework.ConfigurationMissing, Context: EnvTelegramChatID, Err: fmt.Errorf("not an integer chat id")})
	} else {
		s.ChatID = id
	}
	return s, errors.Join(errs...)
}

// MissingNames lists the variable names carried by a SecretsFromEnv error.
func MissingNames(err error) []string {
	if err == nil {
		return nil
	}
	var out []string
	var walk func(error)
	walk = func(e error) {
		if j, ok := e.(interface{ Unwrap() []error }); ok {
			for _, x := range j.Unwrap() {
				walk(x)
			}
			return
		}
		var he *homework.Error
		if errors.As(e, &he) && he.Kind == homework.ConfigurationMissing {
			out = append(out, he.Context)
		}
	}
	walk(err)
	return out
}

// Path returns the config file path and whether it was set explicitly.
func Path(lookup func(string) (string, bool)) (string, bool) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	if v, ok := lookup(EnvConfigPath); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v), true
	}
	return DefaultPath, false
}
