package config

import (
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"swisctl/pkg/models"
)

// ErrInvalid marks missing or malformed run parameters.
var ErrInvalid = errors.New("invalid configuration")

// EnvPrefix prefixes every environment override (SWISCTL_SERVER, ...).
const EnvPrefix = "SWISCTL"

// Config stores the parameters of one run.
// Values come from flags, then environment, then swisctl.yaml, then defaults.
type Config struct {
	// Action
	Action string `mapstructure:"action" validate:"required,oneof=mute unmute manage unmanage init"`
	DryRun bool   `mapstructure:"dry-run"`

	// Server / credential
	Server       string `mapstructure:"server" validate:"required"`
	Username     string `mapstructure:"username" validate:"required"`
	Key          string `mapstructure:"key" validate:"required"`
	KeyDelimiter string `mapstructure:"key-delimiter" validate:"required"`
	SecretFile   string `mapstructure:"secret-file" validate:"required"`
	CAFile       string `mapstructure:"ca-file" validate:"omitempty,file"`
	Insecure     bool   `mapstructure:"insecure"`

	// Local identity
	Hostname      string `mapstructure:"hostname"`
	ShortHostname bool   `mapstructure:"short-hostname"`

	// Extended init flow
	Group      string `mapstructure:"group" validate:"required_if=Action init"`
	City       string `mapstructure:"city" validate:"required_if=Action init"`
	Department string `mapstructure:"department" validate:"required_if=Action init"`

	// Logging
	LogDir   string `mapstructure:"log-dir" validate:"required"`
	LogFile  string `mapstructure:"log-file" validate:"required"`
	LogLevel string `mapstructure:"log-level" validate:"oneof=debug info warn error"`
}

// ActionKind returns the configured action.
func (c *Config) ActionKind() models.ActionKind {
	return models.ActionKind(c.Action)
}

// NewFlagSet registers every run parameter on a new flag set.
func NewFlagSet(name string, output io.Writer) *pflag.FlagSet {
	flagSet := pflag.NewFlagSet(name, pflag.ContinueOnError)
	flagSet.SetOutput(output)

	kinds := make([]string, 0, len(models.ActionKinds()))
	for _, kind := range models.ActionKinds() {
		kinds = append(kinds, string(kind))
	}

	flagSet.StringP("action", "a", "", "action to apply: "+strings.Join(kinds, ", "))
	flagSet.Bool("dry-run", false, "resolve everything but skip remote writes")

	flagSet.StringP("server", "s", "", "inventory server (host, host:port or URL)")
	flagSet.StringP("username", "u", "", "account used to log in")
	flagSet.StringP("key", "k", "", "key fragments: 16 decimal bytes")
	flagSet.String("key-delimiter", ",", "separator between key fragments")
	flagSet.String("secret-file", "/etc/swisctl/secret.txt", "encrypted password blob")
	flagSet.String("ca-file", "", "extra PEM bundle to trust for the server certificate")
	flagSet.Bool("insecure", false, "skip server certificate verification")

	flagSet.String("hostname", "", "name to look up instead of the OS host name")
	flagSet.Bool("short-hostname", false, "strip the domain from the host name")

	flagSet.StringP("group", "g", "", "group to join (init)")
	flagSet.String("city", "", "City custom property (init)")
	flagSet.String("department", "", "Department custom property (init)")

	flagSet.String("log-dir", "/var/log/swisctl", "directory for the run log")
	flagSet.String("log-file", "swisctl.log", "run log file name")
	flagSet.String("log-level", "info", "debug, info, warn or error")

	flagSet.String("config", "", "config file (default: swisctl.yaml in /etc/swisctl or the working directory)")
	flagSet.BoolP("help", "h", false, "show help")
	return flagSet
}

// Load parses args and merges them with environment and config file values.
// It returns pflag.ErrHelp when help was requested.
func Load(args []string, output io.Writer) (*Config, error) {
	flagSet := NewFlagSet("swisctl", output)
	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if help, _ := flagSet.GetBool("help"); help {
		flagSet.PrintDefaults()
		return nil, pflag.ErrHelp
	}
	if extra := flagSet.Args(); len(extra) > 0 {
		return nil, fmt.Errorf("%w: unexpected argument %q", ErrInvalid, extra[0])
	}

	v := viper.New()

	// 1. Environment (SWISCTL_KEY_DELIMITER for --key-delimiter)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	// 2. Flags: explicit flags win, flag defaults lose to env and file
	if err := v.BindPFlags(flagSet); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}

	// 3. swisctl.yaml if present
	if path, _ := flagSet.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("%w: read %s: %w", ErrInvalid, path, err)
		}
	} else {
		v.SetConfigName("swisctl")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/swisctl")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
			}
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	config.Action = strings.ToLower(strings.TrimSpace(config.Action))
	config.LogLevel = strings.ToLower(strings.TrimSpace(config.LogLevel))

	if err := Validate(&config); err != nil {
		return nil, err
	}
	return &config, nil
}

var validate = newValidator()

// newValidator reports fields by their flag names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		return field.Tag.Get("mapstructure")
	})
	return v
}

// Validate checks mandatory parameters and the allowed action set.
func Validate(config *Config) error {
	err := validate.Struct(config)
	if err == nil {
		return nil
	}

	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}

	messages := make([]string, 0, len(fieldErrors))
	for _, fe := range fieldErrors {
		flag := fe.Field()
		switch fe.Tag() {
		case "required":
			messages = append(messages, fmt.Sprintf("--%s is required", flag))
		case "required_if":
			messages = append(messages, fmt.Sprintf("--%s is required for --action %s", flag, config.Action))
		case "oneof":
			messages = append(messages, fmt.Sprintf("--%s must be one of [%s], got %q", flag, fe.Param(), fe.Value()))
		case "file":
			messages = append(messages, fmt.Sprintf("--%s %q is not a readable file", flag, fe.Value()))
		default:
			messages = append(messages, fmt.Sprintf("--%s failed %s", flag, fe.Tag()))
		}
	}
	return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(messages, "; "))
}
