package cli

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path"
	"path/filepath"
	"regexp"
	"syscall"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/buildgate/buildgate/internal/pkg/build"
	"github.com/buildgate/buildgate/internal/pkg/identity"
	"github.com/buildgate/buildgate/internal/pkg/log"
	"github.com/buildgate/buildgate/internal/pkg/options"
	"github.com/buildgate/buildgate/internal/pkg/remote"
	"github.com/buildgate/buildgate/internal/pkg/utils"
	"github.com/buildgate/buildgate/internal/pkg/version"
)

const description = `
Buildgate

Coordination gates for agents of one CI run.

Independently scheduled agents agree on an ordering
or on a completion condition through the run record
store, they never talk to each other directly.

The process exit code is the protocol result,
see the help of the sub-commands.
`

const usageTemplate = `Usage:{{if .HasAvailableSubCommands}}
  {{.CommandPath}} [command]{{else if .Runnable}}
  {{.UseLine}}{{end}}{{if gt (len .Aliases) 0}}

Aliases:`

type rootCommand struct {
	cmd          *cobra.Command
	options      *options.Options   // parsed flags and env variables
	ctx          context.Context    // context for the executed protocol
	api          *remote.RunApi     // GetRunApi should be used to initialize
	start        time.Time          // cmd start time
	initialized  bool               // init method was called
	exitCode     int                // protocol code of the executed command
	logFile      *os.File           // log file instance
	logFileClear bool               // is log file temporary? if yes, it will be removed at the end, if no error occurs
	logger       *zap.SugaredLogger // log to console and logFile
}

// NewRootCommand creates parent of all sub-commands.
func NewRootCommand(stdin io.Reader, stdout io.Writer, stderr io.Writer) *rootCommand {
	root := &rootCommand{
		options: &options.Options{},
		ctx:     context.Background(),
		start:   time.Now(),
	}

	// Command definition
	root.cmd = &cobra.Command{
		Use:          path.Base(os.Args[0]), // name of the binary
		Version:      build.Version(),
		Short:        description,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Print help if no command specified
			return root.cmd.Help()
		},
	}

	// Setup in/out
	root.cmd.SetIn(stdin)
	root.cmd.SetOut(stdout)
	root.cmd.SetErr(stderr)

	// Setup templates
	root.cmd.SetVersionTemplate("{{.Version}}")
	root.cmd.SetUsageTemplate(
		regexp.MustCompile(`Usage:(.|\n)*Aliases:`).ReplaceAllString(root.cmd.UsageTemplate(), usageTemplate),
	)

	// Persistent flags for all sub-commands
	root.options.BindPersistentFlags(root.cmd.PersistentFlags())

	// Root command flags
	root.cmd.Flags().SortFlags = true
	root.cmd.Flags().BoolP("version", "V", false, "print version")

	// Init when flags are parsed
	root.cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if err := root.init(cmd); err != nil {
			return err
		}

		if os.Getenv(version.EnvVersionCheck) != "false" {
			versionChecker := version.NewChecker(root.ctx, root.logger)
			if err := versionChecker.CheckIfLatest(build.BuildVersion); err != nil {
				// Ignore error, send to logs
				root.logger.Debugf(`Version check: %s.`, err.Error())
			}
		}

		return nil
	}

	// Sub-commands
	root.cmd.AddCommand(
		reserveCommand(root),
		synchronizeCommand(root),
	)

	return root
}

// Execute command or sub-command, the exit code is the protocol result.
func (root *rootCommand) Execute() (exitCode int) {
	defer root.tearDown()

	// Interrupt signals cancel the running protocol, the waits react promptly
	ctx, cancel := signal.NotifyContext(root.ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()
	root.ctx = ctx

	if err := root.cmd.Execute(); err != nil {
		// Init, it can be uninitialized, if error occurred before PersistentPreRun call
		_ = root.init(root.cmd)
		// Error is already logged
		return 1
	}
	return root.exitCode
}

func (root *rootCommand) GetCommandByName(name string) *cobra.Command {
	for _, cmd := range root.cmd.Commands() {
		if cmd.Name() == name {
			return cmd
		}
	}

	return nil
}

func (root *rootCommand) ValidateOptions(required []string) error {
	if err := root.options.Validate(required); len(err) > 0 {
		root.logger.Warn("Invalid parameters:\n", err)
		return fmt.Errorf("invalid parameters, see output above")
	}
	return nil
}

// GetRunApi returns API and initialize it first time.
func (root *rootCommand) GetRunApi() (api *remote.RunApi, err error) {
	if root.api == nil {
		root.api, err = remote.NewRunApiFromOptions(root.options, root.ctx, root.logger)
		if err != nil {
			return nil, err
		}
	}
	return root.api, nil
}

// ResolveRecordId accepts a record id or a human-readable record name.
// A name maps to a deterministic id scoped under the run, so every agent
// of the run derives the same id from the same name.
func (root *rootCommand) ResolveRecordId(value string) string {
	if _, err := uuid.FromString(value); err == nil {
		return value
	}
	derived := identity.DeriveScopedID(value, identity.DeriveID(root.options.RunId)).String()
	root.logger.Debugf(`Record name "%s" resolved to id "%s".`, value, derived)
	return derived
}

// tearDown makes clean-up after command execution.
func (root *rootCommand) tearDown() {
	if err := recover(); err == nil {
		if root.logFile != nil {
			if err = root.logFile.Close(); err != nil {
				panic(fmt.Errorf("cannot close log file \"%s\": %s", root.options.LogFilePath, err))
			}
		}

		// No error -> remove log file if temporary
		if root.logFileClear {
			if err = os.Remove(root.options.LogFilePath); err != nil {
				panic(fmt.Errorf("cannot remove temp log file \"%s\": %s", root.options.LogFilePath, err))
			}
		}
	} else {
		// Error -> process and close log file
		exitCode := utils.ProcessPanic(err, root.logger, root.options.LogFilePath)
		if root.logFile != nil {
			if err = root.logFile.Close(); err != nil {
				panic(fmt.Errorf("cannot close log file \"%s\": %s", root.options.LogFilePath, err))
			}
		}
		os.Exit(exitCode)
	}
}

// init sets logger and options after flags are parsed.
func (root *rootCommand) init(cmd *cobra.Command) (err error) {
	if root.initialized {
		return
	}

	// Run only once
	root.initialized = true

	// Logger must always be set up, even if there is a panic somewhere
	defer func() {
		if root.logger == nil {
			root.setupLogger()
		}
	}()

	// Load values from flags and envs
	if err = root.options.Load(cmd.Flags()); err != nil {
		return err
	}

	// Setup logger
	root.setupLogger()
	root.logDebugInfo()

	return nil
}

// setupLogger according to the options.
func (root *rootCommand) setupLogger() {
	logFile, logFileErr := root.getLogFile()
	root.logger = log.NewLogger(root.cmd.OutOrStdout(), root.cmd.ErrOrStderr(), logFile, root.options.Verbose)
	root.logFile = logFile
	root.cmd.SetOut(log.ToInfoWriter(root.logger))
	root.cmd.SetErr(log.ToWarnWriter(root.logger))

	// Warn if user specified log file and it cannot be opened
	if logFileErr != nil && !root.logFileClear {
		root.logger.Warnf("Cannot open log file: %s", logFileErr)
	}
}

func (root *rootCommand) logDebugInfo() {
	// Version
	_, err := log.ToDebugWriter(root.logger).WriteString(root.cmd.Version)
	if err != nil {
		panic(err)
	}

	// Command
	root.logger.Debugf("Running command %v", os.Args)

	// Options
	root.logger.Debug(root.options.Dump())
}

// Get log file defined in the flags or create a temp file.
func (root *rootCommand) getLogFile() (logFile *os.File, logFileErr error) {
	if len(root.options.LogFilePath) > 0 {
		root.logFileClear = false // log file defined by user will be preserved
	} else {
		// Generate a unique hash if multiple instances start simultaneously
		randomHash := ``
		randomBytes := make([]byte, 6)
		if _, err := rand.Read(randomBytes); err == nil {
			randomHash = fmt.Sprintf(`-%x`, randomBytes)
		}

		root.options.LogFilePath = filepath.Join(os.TempDir(), fmt.Sprintf("buildgate-%d%s.txt", time.Now().Unix(), randomHash))
		root.logFileClear = true // temp log file will be removed. It will be preserved only in case of error
	}

	logFile, logFileErr = os.OpenFile(root.options.LogFilePath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if logFileErr != nil {
		root.options.LogFilePath = ""
	}
	return
}
