package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/abdul-hamid-achik/tuner/packages/core/config"
	"github.com/abdul-hamid-achik/tuner/packages/core/env"
	"github.com/abdul-hamid-achik/tuner/packages/core/runner"
	"github.com/abdul-hamid-achik/tuner/packages/logger"
	"github.com/abdul-hamid-achik/tuner/packages/notify"
	"github.com/abdul-hamid-achik/tuner/packages/output"
	"github.com/abdul-hamid-achik/tuner/packages/suite"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var runCmd = &cobra.Command{
	Use:   "run <file|directory>...",
	Short: "Run suite files",
	Long: `Run the calls defined in YAML suite files.

Examples:
  tuner run users.yaml
  tuner run users.yaml --env staging
  tuner run ./suites/ --tags smoke
  tuner run users.yaml --name "create*" --var token=abc
  tuner run ./suites/ --output junit --output-file report.xml`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCommand,
}

const (
	// WatchDebounceDelay is the debounce delay for file watch events
	WatchDebounceDelay = 300 * time.Millisecond

	// systemVarPrefix marks process environment variables exposed to suites
	systemVarPrefix = "TUNER_VAR_"
)

var (
	envFlag        string
	envFileFlag    string
	nameFlag       string
	tagsFlag       string
	varFlags       []string
	verboseFlag    int
	quietFlag      bool
	bailFlag       bool
	timeoutFlag    string
	noColorFlag    bool
	dryRunFlag     bool
	outputFlag     string
	outputFileFlag string
	watchFlag      bool
	proxyFlag      string
	rateFlag       float64
	insecureFlag   bool
	templatingFlag bool
	logLevelFlag   string
	logFileFlag    string
	notifyOnFlag   string
	slackFlag      string
	webhookFlag    string
)

func init() {
	// Core flags
	runCmd.Flags().StringVarP(&envFlag, "env", "e", getEnvString("TUNER_ENV", ""), "Environment to use (env: TUNER_ENV)")
	runCmd.Flags().StringVar(&envFileFlag, "env-file", getEnvString("TUNER_ENV_FILE", ""), "Path to .env file merged into the environment variables (env: TUNER_ENV_FILE)")
	runCmd.Flags().StringVarP(&nameFlag, "name", "n", "", "Run only calls matching name pattern (supports leading/trailing *)")
	runCmd.Flags().StringVarP(&tagsFlag, "tags", "t", getEnvString("TUNER_TAGS", ""), "Run only calls with specified tags (comma-separated) (env: TUNER_TAGS)")
	runCmd.Flags().StringArrayVar(&varFlags, "var", nil, "Set a context variable (name=value), repeatable")

	// Output flags
	runCmd.Flags().CountVarP(&verboseFlag, "verbose", "v", "Verbose output (-v shows requests, -vv enables debug logs)")
	runCmd.Flags().BoolVarP(&quietFlag, "quiet", "q", getEnvBool("TUNER_QUIET", false), "Suppress all output except errors (env: TUNER_QUIET)")
	runCmd.Flags().BoolVar(&noColorFlag, "no-color", getEnvBool("TUNER_NO_COLOR", false), "Disable colored output (env: TUNER_NO_COLOR)")
	runCmd.Flags().StringVarP(&outputFlag, "output", "o", getEnvString("TUNER_OUTPUT", output.FormatConsole), "Output format: "+strings.Join(output.Formats, ", ")+" (env: TUNER_OUTPUT)")
	runCmd.Flags().StringVar(&outputFileFlag, "output-file", getEnvString("TUNER_OUTPUT_FILE", ""), "Write output to file (default: stdout) (env: TUNER_OUTPUT_FILE)")
	runCmd.Flags().StringVar(&logLevelFlag, "log-level", getEnvString("TUNER_LOG_LEVEL", ""), "Log level: debug, info, warn, error, off (env: TUNER_LOG_LEVEL)")
	runCmd.Flags().StringVar(&logFileFlag, "log-file", getEnvString("TUNER_LOG_FILE", ""), "Write logs to a rotated file (env: TUNER_LOG_FILE)")

	// Execution flags
	runCmd.Flags().BoolVar(&bailFlag, "bail", getEnvBool("TUNER_BAIL", false), "Stop on first failure (env: TUNER_BAIL)")
	runCmd.Flags().StringVar(&timeoutFlag, "timeout", getEnvString("TUNER_TIMEOUT", ""), "Client timeout (e.g., 30s, 1m) (env: TUNER_TIMEOUT)")
	runCmd.Flags().BoolVar(&templatingFlag, "templating", getEnvBool("TUNER_TEMPLATING", false), "Resolve {{name}} placeholders in requests (env: TUNER_TEMPLATING)")
	runCmd.Flags().BoolVar(&dryRunFlag, "dry-run", false, "Decode and show what would run without executing")
	runCmd.Flags().BoolVarP(&watchFlag, "watch", "w", false, "Watch files for changes and re-run")

	// Network flags
	runCmd.Flags().StringVar(&proxyFlag, "proxy", getEnvString("TUNER_PROXY", ""), "Proxy URL for HTTP requests (env: TUNER_PROXY)")
	runCmd.Flags().Float64Var(&rateFlag, "rate", getEnvFloat("TUNER_RATE", 0), "Maximum requests per second, 0 for unlimited (env: TUNER_RATE)")
	runCmd.Flags().BoolVarP(&insecureFlag, "insecure", "k", getEnvBool("TUNER_INSECURE", false), "Disable SSL certificate validation (env: TUNER_INSECURE)")

	// Notification flags
	runCmd.Flags().StringVar(&notifyOnFlag, "notify-on", getEnvString("TUNER_NOTIFY_ON", ""), "When to notify: always, failure, success, recovery (env: TUNER_NOTIFY_ON)")
	runCmd.Flags().StringVar(&slackFlag, "slack-webhook", getEnvString("TUNER_SLACK_WEBHOOK", ""), "Slack incoming webhook URL for run summaries (env: TUNER_SLACK_WEBHOOK)")
	runCmd.Flags().StringVar(&webhookFlag, "webhook", getEnvString("TUNER_WEBHOOK", ""), "URL receiving run summaries as JSON (env: TUNER_WEBHOOK)")
}

// Environment variable helpers
func getEnvString(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		return val == "true" || val == "1" || val == "yes"
	}
	return defaultVal
}

// flagConfig turns the run flags into a config overlay. Unset flags leave
// the file config alone.
func flagConfig() (*config.Config, error) {
	fc := &config.Config{
		DefaultEnvironment: envFlag,
		EnvFile:            envFileFlag,
		Proxy:              proxyFlag,
		RateLimit:          rateFlag,
		Log: config.LogConfig{
			Level: logLevelFlag,
			File:  logFileFlag,
		},
		Notify: config.NotifyConfig{
			On:      notifyOnFlag,
			Slack:   slackFlag,
			Webhook: webhookFlag,
		},
	}
	if timeoutFlag != "" {
		timeout, err := time.ParseDuration(timeoutFlag)
		if err != nil {
			return nil, fmt.Errorf("invalid timeout value %q: %w (use format like 30s, 1m, 500ms)", timeoutFlag, err)
		}
		fc.Timeout = int(timeout.Milliseconds())
	}
	if insecureFlag {
		fc.ValidateSSL = config.BoolPtr(false)
	}
	if bailFlag {
		fc.Bail = config.BoolPtr(true)
	}
	if templatingFlag {
		fc.Templating = config.BoolPtr(true)
	}
	if noColorFlag || quietFlag {
		fc.NoColor = config.BoolPtr(true)
	}
	if verboseFlag > 1 && logLevelFlag == "" {
		fc.Log.Level = "debug"
	}
	return fc, nil
}

// loadSettings merges the config file with the flag overlay.
func loadSettings() (*config.Config, error) {
	fileConfig, err := config.LoadConfig(configFlag)
	if err != nil {
		return nil, err
	}
	overlay, err := flagConfig()
	if err != nil {
		return nil, err
	}
	return fileConfig.Merge(overlay), nil
}

// buildRegistry creates the environment registry and layers variables on
// the current environment: config < TUNER_VAR_* < .env file.
func buildRegistry(cfg *config.Config) (*env.Registry, error) {
	reg, err := cfg.Registry("")
	if err != nil {
		return nil, err
	}
	current := reg.CurrentName()
	if sys := env.LoadSystemEnv(systemVarPrefix); len(sys) > 0 {
		reg.SetVariables(current, sys)
	}
	if cfg.EnvFile != "" {
		dotenv, err := env.LoadDotEnv(cfg.EnvFile)
		if err != nil {
			return nil, fmt.Errorf("loading env file: %w", err)
		}
		vars := make(map[string]any, len(dotenv))
		for k, v := range dotenv {
			vars[k] = v
		}
		reg.SetVariables(current, vars)
	}
	return reg, nil
}

func parseVars(flags []string) (map[string]any, error) {
	if len(flags) == 0 {
		return nil, nil
	}
	vars := make(map[string]any, len(flags))
	for _, f := range flags {
		name, value, ok := strings.Cut(f, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid --var %q (want name=value)", f)
		}
		vars[name] = parseScalar(value)
	}
	return vars, nil
}

// parseScalar keeps numbers and booleans typed so assertions compare them
// as such.
func parseScalar(s string) any {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return int(i)
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	switch s {
	case "true":
		return true
	case "false":
		return false
	}
	return s
}

func splitTags(s string) []string {
	var tags []string
	for _, t := range strings.Split(s, ",") {
		t = strings.TrimSpace(t)
		if t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

// runSummary aggregates the results of all suites in one run.
type runSummary struct {
	passed, failed, skipped int
	// networkFailed counts failures caused only by transport errors
	networkFailed int
	suiteErrors   int
	duration      time.Duration
	report        notify.Summary
}

func (s *runSummary) add(result *runner.RunResult) {
	s.report.Add(result)
	s.passed += result.Passed
	s.failed += result.Failed
	s.skipped += result.Skipped
	for _, r := range result.Results {
		if !r.Passed && !r.Skipped && r.Error == nil && r.Response != nil && r.Response.IsTransportFailure() {
			s.networkFailed++
		}
	}
}

func (s *runSummary) exitError() error {
	switch {
	case s.failed > 0 && s.failed == s.networkFailed:
		return &ExitError{Code: ExitNetworkError}
	case s.failed > 0:
		return &ExitError{Code: ExitTestFailure}
	case s.suiteErrors > 0:
		return &ExitError{Code: ExitParseError}
	}
	return nil
}

func runCommand(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var out io.Writer = cmd.OutOrStdout()
	if outputFileFlag != "" {
		f, err := os.Create(outputFileFlag)
		if err != nil {
			return exitErrorf(ExitUsageError, "cannot create output file: %w", err)
		}
		defer f.Close()
		out = f
	}

	cfg, err := loadSettings()
	if err != nil {
		return &ExitError{Code: ExitConfigError, Err: err}
	}

	newFormatter := func() (output.Formatter, error) {
		return output.New(outputFlag, out, verboseFlag > 0, cfg.GetNoColor())
	}
	formatter, err := newFormatter()
	if err != nil {
		return &ExitError{Code: ExitUsageError, Err: err}
	}

	log, err := logger.New(cfg.LoggerConfig())
	if err != nil {
		return &ExitError{Code: ExitConfigError, Err: err}
	}
	defer func() { _ = log.Sync() }()

	reg, err := buildRegistry(cfg)
	if err != nil {
		return &ExitError{Code: ExitConfigError, Err: err}
	}

	notifier, err := buildNotifier(cfg, log)
	if err != nil {
		return &ExitError{Code: ExitConfigError, Err: err}
	}

	vars, err := parseVars(varFlags)
	if err != nil {
		return &ExitError{Code: ExitUsageError, Err: err}
	}

	files, err := suite.Discover(args)
	if err != nil {
		return exitErrorf(ExitUsageError, "cannot access suites: %w", err)
	}
	if len(files) == 0 {
		return exitErrorf(ExitUsageError, "no suite files found")
	}

	r := runner.NewRunner(&runner.Config{
		Environment:   reg,
		ClientOptions: cfg.ClientOptions(),
		Logger:        log,
		Templating:    cfg.GetTemplating(),
		Bail:          cfg.GetBail(),
		NameFilter:    nameFlag,
		TagsFilter:    splitTags(tagsFlag),
		Variables:     vars,
		RateLimit:     cfg.RateLimit,
	})
	log.Debug("run configured",
		zap.String("environment", reg.CurrentName()),
		zap.String("prefix", reg.ResolvePrefix()),
		zap.Int("files", len(files)),
	)

	if !quietFlag {
		formatter.FormatHeader(version)
	}

	summary := runFiles(ctx, cmd, r, files, formatter, cfg.GetBail())
	if err := flush(formatter, summary.duration); err != nil {
		return err
	}
	sendNotification(ctx, notifier, summary, reg.CurrentName())

	if !watchFlag {
		return summary.exitError()
	}

	return watch(ctx, cmd, args, func(changed string) {
		fmt.Fprintf(cmd.OutOrStdout(), "\n\nFile changed: %s\nRe-running...\n\n", changed)

		// fresh formatter so accumulating formats start empty
		formatter, err := newFormatter()
		if err != nil {
			return
		}
		files, err := suite.Discover(args)
		if err != nil {
			formatter.FormatError(err)
			return
		}
		summary := runFiles(ctx, cmd, r, files, formatter, cfg.GetBail())
		if err := flush(formatter, summary.duration); err != nil {
			formatter.FormatError(err)
		}
		sendNotification(ctx, notifier, summary, reg.CurrentName())
	})
}

// buildNotifier returns nil when no destination is configured.
func buildNotifier(cfg *config.Config, log *zap.Logger) (*notify.Manager, error) {
	on, err := notify.ParseNotifyOn(cfg.Notify.On)
	if err != nil {
		return nil, err
	}
	var notifiers []notify.Notifier
	if cfg.Notify.Slack != "" {
		notifiers = append(notifiers, notify.NewSlackNotifier(cfg.Notify.Slack, notify.WithSlackChannel(cfg.Notify.SlackChannel)))
	}
	if cfg.Notify.Webhook != "" {
		notifiers = append(notifiers, notify.NewWebhookNotifier(cfg.Notify.Webhook, nil))
	}
	if len(notifiers) == 0 {
		return nil, nil
	}
	return notify.NewManager(on, log.Named("notify"), notifiers...), nil
}

// sendNotification never affects the exit code; failures are logged by the manager.
func sendNotification(ctx context.Context, m *notify.Manager, summary *runSummary, environment string) {
	if m == nil || dryRunFlag {
		return
	}
	summary.report.Duration = summary.duration
	summary.report.Environment = environment
	_ = m.Notify(ctx, &summary.report)
}

func runFiles(ctx context.Context, cmd *cobra.Command, r *runner.Runner, files []string, formatter output.Formatter, bail bool) *runSummary {
	summary := &runSummary{}
	start := time.Now()

	for _, file := range files {
		if dryRunFlag {
			s, err := suite.ParseFile(file)
			if err != nil {
				formatter.FormatError(err)
				summary.suiteErrors++
				continue
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Would run: %s (%d calls)\n", file, len(s.Calls))
			continue
		}

		result, err := r.RunFile(ctx, file)
		if err != nil {
			formatter.FormatError(fmt.Errorf("%s: %w", file, err))
			summary.suiteErrors++
			if bail || ctx.Err() != nil {
				break
			}
			continue
		}

		formatter.FormatResult(result)
		summary.add(result)

		if bail && result.HasFailures() {
			break
		}
	}

	summary.duration = time.Since(start)
	return summary
}

func flush(formatter output.Formatter, d time.Duration) error {
	// Flush output for formatters that accumulate results
	if flushable, ok := formatter.(output.Flushable); ok {
		if err := flushable.Flush(d); err != nil {
			return fmt.Errorf("error writing output: %w", err)
		}
	}
	return nil
}

// watch re-runs on suite file changes until ctx is canceled. Reruns
// happen on this goroutine, one at a time.
func watch(ctx context.Context, cmd *cobra.Command, args []string, rerun func(changed string)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	watched := make(map[string]bool)
	addDir := func(dir string) {
		if watched[dir] {
			return
		}
		if err := watcher.Add(dir); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "failed to watch %s: %v\n", dir, err)
		}
		watched[dir] = true
	}
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			continue
		}
		if !info.IsDir() {
			addDir(filepath.Dir(arg))
			continue
		}
		_ = filepath.WalkDir(arg, func(path string, d os.DirEntry, err error) error {
			if err == nil && d.IsDir() {
				addDir(path)
			}
			return nil
		})
	}

	fmt.Fprintf(cmd.OutOrStdout(), "\nWatching for changes... (press Ctrl+C to stop)\n\n")

	changed := make(chan string, 1)
	var debounceTimer *time.Timer
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if !suite.IsSuiteFile(event.Name) {
				continue
			}
			// Debounce: reset timer on each event
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			name := event.Name
			debounceTimer = time.AfterFunc(WatchDebounceDelay, func() {
				select {
				case changed <- name:
				default:
				}
			})

		case name := <-changed:
			rerun(name)
			fmt.Fprintf(cmd.OutOrStdout(), "\nWatching for changes... (press Ctrl+C to stop)\n")

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "watcher error: %v\n", err)
		}
	}
}
