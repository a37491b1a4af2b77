package options

import (
	"fmt"
	"os"
	"reflect"
	"regexp"
	"strings"

	"github.com/iancoleman/strcase"
	"github.com/spf13/cast"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Options contains parsed flags and ENV variables
type Options struct {
	Verbose          bool   `flag:"verbose"`       // verbose mode, print details to console
	VerboseApi       bool   `flag:"verbose-api"`   // log each API request and response
	LogFilePath      string `flag:"log-file"`      // path to the log file
	RunApiUrl        string `flag:"run-api-url"`   // run API url
	RunApiToken      string `flag:"run-api-token"` // run API token
	RunId            string `flag:"run-id"`        // id of the current run
	JobRecordId      string `flag:"job-record"`    // record id of the calling job
	TaskRecordId     string `flag:"task-record"`   // record id of the calling task
	AgentName        string `flag:"agent-name"`    // agent name stored in reservation entries
	WorkingDirectory string // working directory
}

// BindPersistentFlags for all commands
func (o *Options) BindPersistentFlags(flags *pflag.FlagSet) {
	flags.SortFlags = true
	flags.BoolP("help", "h", false, "print help for command")
	flags.StringP("log-file", "l", "", "path to a log file for details")
	flags.StringP("working-dir", "d", "", "use other working directory")
	flags.StringP("run-api-url", "u", "", "run API url, eg. \"https://runapi.company.com\"")
	flags.StringP("run-api-token", "t", "", "run API token")
	flags.String("run-id", "", "id of the current run")
	flags.String("job-record", "", "record id of the calling job")
	flags.String("task-record", "", "record id of the calling task")
	flags.String("agent-name", "", "name of this agent, it is stored in the run records")
	flags.BoolP("verbose", "v", false, "print details")
	flags.Bool("verbose-api", false, "log each API request and response")
}

// Validate required options - defined by field name
func (o *Options) Validate(required []string) string {
	var errors []string
	envNaming := &envNamingConvention{}
	reflection := reflect.Indirect(reflect.ValueOf(o))
	types := reflect.TypeOf(*o)

	// Iterate over required fields
	for _, fieldName := range required {
		fieldType, exists := types.FieldByName(fieldName)
		fieldNameHumanReadable := strcase.ToDelimited(fieldName, ' ')
		if !exists {
			panic(fmt.Sprintf(`Field "%s" doesn't exist in Options struct.`, fieldName))
		}

		flag := fieldType.Tag.Get("flag")
		if reflection.FieldByName(fieldName).Len() > 0 {
			continue
		}

		// Create error message by field type
		if len(flag) > 0 {
			errors = append(errors, fmt.Sprintf(
				`- Missing %s. Please use "--%s" flag or ENV variable "%s".`,
				fieldNameHumanReadable,
				flag,
				envNaming.Replace(flag),
			))
		} else {
			errors = append(errors, fmt.Sprintf(`- Missing %s.`, fieldNameHumanReadable))
		}
	}

	return strings.Join(errors, "\n")
}

// Load all sources of Options - flags, envs
func (o *Options) Load(flags *pflag.FlagSet) error {
	// Env parser
	envNaming := &envNamingConvention{}
	parser := viper.NewWithOptions(viper.EnvKeyReplacer(envNaming))

	// Bind flags
	if err := parser.BindPFlags(flags); err != nil {
		return err
	}

	// Bind ENV variables
	parser.AutomaticEnv()

	// Set working directory + load .env file if present
	workingDir, err := getWorkingDirectory(parser)
	if err != nil {
		return err
	}
	o.WorkingDirectory = strings.TrimRight(workingDir, string(os.PathSeparator))
	if err := loadDotEnv(o.WorkingDirectory); err != nil {
		return err
	}

	// For each Options struct field with "flag" tag -> load value from parser
	reflection := reflect.Indirect(reflect.ValueOf(o))
	types := reflect.TypeOf(*o)
	for i := 0; i < reflection.NumField(); i++ {
		if flag := types.Field(i).Tag.Get("flag"); len(flag) > 0 {
			if value := parser.Get(flag); value != nil {
				// ENV values are strings, cast them to the field type
				field := reflection.Field(i)
				switch field.Kind() {
				case reflect.Bool:
					field.SetBool(cast.ToBool(value))
				default:
					field.SetString(cast.ToString(value))
				}
			}
		}
	}

	// Normalize the values into a uniform form
	o.normalize()

	return nil
}

func (o *Options) normalize() {
	o.RunApiUrl = strings.TrimRight(strings.TrimSpace(o.RunApiUrl), "/")
	if len(o.RunApiUrl) > 0 && !strings.Contains(o.RunApiUrl, "://") {
		o.RunApiUrl = "https://" + o.RunApiUrl
	}
	o.RunApiToken = strings.TrimSpace(o.RunApiToken)
	o.RunId = strings.TrimSpace(o.RunId)
}

// AgentNameOrHost returns the agent name, the hostname is the fallback.
func (o *Options) AgentNameOrHost() string {
	if len(o.AgentName) > 0 {
		return o.AgentName
	}
	if host, err := os.Hostname(); err == nil && len(host) > 0 {
		return host
	}
	return "unknown-agent"
}

// Dump Options for debugging, hide API token
func (o *Options) Dump() string {
	re := regexp.MustCompile(`(RunApiToken:"[^"]{1,7})[^"]*(")`)
	str := fmt.Sprintf("Parsed options: %#v", o)
	str = re.ReplaceAllString(str, `$1*****$2`)
	return str
}

// getWorkingDirectory from flag or by default from OS
func getWorkingDirectory(parser *viper.Viper) (string, error) {
	value := parser.GetString("working-dir")
	if len(value) > 0 {
		return value, nil
	}

	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("cannot get current working directory: %s", err)
	}
	return dir, nil
}
