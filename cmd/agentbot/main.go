package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"
	zaplogfmt "github.com/sykesm/zap-logfmt"
	"github.com/thecodeteam/goodbye"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/simplesurance/agentbot/internal/cfg"
	"github.com/simplesurance/agentbot/internal/githubclt"
	"github.com/simplesurance/agentbot/internal/logfields"
	"github.com/simplesurance/agentbot/internal/provider/github"
	"github.com/simplesurance/agentbot/internal/router"
	"github.com/simplesurance/agentbot/internal/sandbox"
)

const appName = "agentbot"

const healthEndpoint = "/health"

// shutdownPriorityExecutor orders the executor shutdown hook before the hooks
// registered with the default priority 0.
const shutdownPriorityExecutor = -1

var logger *zap.Logger

// Version is set via a ldflag on compilation
var Version = "unknown"

func exitOnErr(msg string, err error) {
	if err == nil {
		return
	}

	fmt.Fprintln(os.Stderr, "ERROR:", msg+", error:", err.Error())
	os.Exit(1)
}

func panicHandler() {
	if r := recover(); r != nil {
		logger.Info(
			"panic caught , terminating gracefully",
			zap.String("panic", fmt.Sprintf("%v", r)),
			zap.StackSkip("stacktrace", 1),
		)

		ctx, cancelFn := context.WithTimeout(context.Background(), time.Minute)
		defer cancelFn()

		goodbye.Exit(ctx, 1)
	}
}

func newServer(listenAddr string, mux *http.ServeMux) *http.Server {
	return &http.Server{
		Addr:              listenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 30 * time.Second,
	}
}

func registerShutdown(name string, srv *http.Server) {
	goodbye.Register(func(context.Context, os.Signal) {
		const shutdownTimeout = 30 * time.Second
		ctx, cancelFn := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancelFn()

		logger.Debug(
			"terminating "+name+" server",
			logfields.Event(name+"_server_terminating"),
			zap.Duration("shutdown_timeout", shutdownTimeout),
		)

		err := srv.Shutdown(ctx)
		if err != nil {
			logger.Warn(
				"shutting down "+name+" server failed",
				logfields.Event(name+"_server_termination_failed"),
				zap.Error(err),
			)
		}
	})
}

func startHTTPSServer(listenAddr string, certFile, keyFile string, mux *http.ServeMux) {
	httpsServer := newServer(listenAddr, mux)
	registerShutdown("https", httpsServer)

	go func() {
		defer panicHandler()

		logger.Info(
			"https server started",
			logfields.Event("https_server_started"),
			zap.String("listenAddr", listenAddr),
		)

		err := httpsServer.ListenAndServeTLS(certFile, keyFile)
		if errors.Is(err, http.ErrServerClosed) {
			logger.Info("https server terminated", logfields.Event("https_server_terminated"))
			return
		}

		logger.Fatal(
			"https server terminated unexpectedly",
			logfields.Event("https_server_terminated_unexpectedly"),
			zap.Error(err),
		)
	}()
}

func startHTTPServer(listenAddr string, mux *http.ServeMux) {
	httpServer := newServer(listenAddr, mux)
	registerShutdown("http", httpServer)

	go func() {
		defer panicHandler()

		logger.Info(
			"http server started",
			logfields.Event("http_server_started"),
			zap.String("listenAddr", listenAddr),
		)

		err := httpServer.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			logger.Info("http server terminated", logfields.Event("http_server_terminated"))
			return
		}

		logger.Fatal(
			"http server terminated unexpectedly",
			logfields.Event("http_server_terminated_unexpectedly"),
			zap.Error(err),
		)
	}()
}

type arguments struct {
	Verbose     *bool
	ConfigFile  *string
	ShowVersion *bool
}

var args arguments

const defConfigFile = "/etc/agentbot/config.toml"

// usageOutput is where the usage text is written to.
var usageOutput io.Writer = os.Stderr

func usage() {
	fmt.Fprintf(usageOutput, "Usage: %s [OPTION]\nReceive GitHub webhook events and run an AI agent in a sandbox container.\n", appName)
	fmt.Fprintf(usageOutput, "\nOptions:\n")
	pflag.CommandLine.SetOutput(usageOutput)
	pflag.PrintDefaults()
}

func defineCommandlineParams() {
	args = arguments{
		Verbose: pflag.BoolP(
			"verbose",
			"v",
			false,
			"enable verbose logging",
		),
		ConfigFile: pflag.StringP(
			"cfg-file",
			"c",
			defConfigFile,
			"path to the agentbot configuration file, settings can be overwritten by environment variables",
		),
		ShowVersion: pflag.Bool(
			"version",
			false,
			"print the version and exit",
		),
	}

	pflag.Usage = usage
}

func mustParseCommandlineParams() {
	defineCommandlineParams()
	pflag.Parse()
}

func mustParseCfg() *cfg.Config {
	// we use exitOnErr in this function instead of logger.Fatal() because
	// the logger is not initialized yet

	config := &cfg.Config{}

	file, err := os.Open(*args.ConfigFile)
	switch {
	case err == nil:
		defer file.Close()

		config, err = cfg.Load(file)
		exitOnErr(fmt.Sprintf("could not load configuration file: %s", *args.ConfigFile), err)

	// the configuration can be passed completely via environment
	// variables, a missing default configuration file is not an error
	case errors.Is(err, os.ErrNotExist) && !pflag.CommandLine.Changed("cfg-file"):

	default:
		exitOnErr("could not open configuration file", err)
	}

	err = config.LoadEnv(context.Background(), nil)
	exitOnErr("could not load configuration from environment variables", err)

	config.ApplyDefaults()

	err = config.Validate()
	exitOnErr("invalid configuration", err)

	return config
}

func initLogFmtLogger(config *cfg.Config, logLevel zapcore.Level) *zap.Logger {
	cfg := zapEncoderConfig(config)

	logger := zap.New(zapcore.NewCore(
		zaplogfmt.NewEncoder(cfg),
		os.Stdout,
		logLevel),
	)

	return logger
}

func zapEncoderConfig(config *cfg.Config) zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()

	cfg.LevelKey = "loglevel"
	cfg.TimeKey = config.LogTimeKey
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncodeDuration = zapcore.StringDurationEncoder

	return cfg
}

func mustInitZapFormatLogger(config *cfg.Config, logLevel zapcore.Level) *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.Sampling = nil
	cfg.EncoderConfig = zapEncoderConfig(config)
	cfg.OutputPaths = []string{"stdout"}
	cfg.Encoding = config.LogFormat
	cfg.Level = zap.NewAtomicLevelAt(logLevel)

	logger, err := cfg.Build()
	exitOnErr("could not initialize logger", err)

	return logger
}

func mustInitLogger(config *cfg.Config) {
	var logLevel zapcore.Level
	if *args.Verbose {
		logLevel = zapcore.DebugLevel
	} else {
		if err := (&logLevel).Set(config.LogLevel); err != nil {
			fmt.Fprintf(os.Stderr, "can not set log level to %q: %s \n", config.LogLevel, err)
			os.Exit(2)
		}
	}

	switch config.LogFormat {
	case "logfmt":
		logger = initLogFmtLogger(config, logLevel)
	case "console", "json":
		logger = mustInitZapFormatLogger(config, logLevel)
	default:
		fmt.Fprintf(os.Stderr, "unsupported log-format argument: %q\n", config.LogFormat)
		os.Exit(2)
	}

	logger = logger.Named("main")
	zap.ReplaceGlobals(logger)

	goodbye.Register(func(context.Context, os.Signal) {
		if err := logger.Sync(); err != nil {
			fmt.Fprintf(os.Stderr, "flushing logs failed: %s\n", err)
		}
	})
}

func hide(in string) string {
	if in == "" {
		return in
	}

	return "**hidden**"
}

// githubClient combines the operations of the GitHub clients that are used by
// the router and the sandbox executor.
type githubClient interface {
	router.GithubClient
	sandbox.InstructionsFetcher
}

func mustInitGithubClient(config *cfg.Config) githubClient {
	clt := githubclt.New(
		config.GithubAPIToken,
		githubclt.WithInstructionsFile(config.RepoInstructionsFile),
	)

	if config.DryRun {
		logger.Info("dry run enabled, changes on github are simulated",
			logfields.Event("github_dry_run_enabled"),
		)

		return githubclt.NewDryClient(clt, zap.L())
	}

	return clt
}

func mustInitFilters(config *cfg.Config) []*router.Filter {
	var result []*router.Filter

	for _, f := range config.EventFilters {
		filter, err := router.NewFilter(f.Name, f.FilterQuery)
		exitOnErr(fmt.Sprintf("could not parse event_filter %q", f.Name), err)

		result = append(result, filter)
	}

	return result
}

func routerLabels(config *cfg.Config) router.Labels {
	if !config.Labels.Enabled {
		return router.Labels{}
	}

	return router.Labels{
		InProgress: config.Labels.InProgress,
		Completed:  config.Labels.Completed,
		Failed:     config.Labels.Failed,
	}
}

func healthHandler(resp http.ResponseWriter, _ *http.Request) {
	resp.Header().Set("Content-Type", "application/json")

	err := json.NewEncoder(resp).Encode(map[string]string{"status": "ok"})
	if err != nil {
		logger.Debug("writing health response failed",
			logfields.Event("health_response_write_failed"),
			zap.Error(err),
		)
	}
}

func main() {
	defer panicHandler()

	defer goodbye.Exit(context.Background(), 1)
	goodbye.Notify(context.Background())

	mustParseCommandlineParams()

	if *args.ShowVersion {
		fmt.Printf("%s %s\n", appName, Version)
		os.Exit(0) // nolint:gocritic // defer functions won't run
	}

	config := mustParseCfg()

	mustInitLogger(config)

	filters := mustInitFilters(config)

	logger.Info(
		"loaded configuration",
		logfields.Event("cfg_loaded"),
		zap.String("cfg_file", *args.ConfigFile),
		zap.String("http_server_listen_addr", config.HTTPListenAddr),
		zap.String("https_server_listen_addr", config.HTTPSListenAddr),
		zap.String("github_webhook_endpoint", config.HTTPGithubWebhookEndpoint),
		zap.String("metrics_endpoint", config.HTTPMetricsEndpoint),
		zap.String("github_webhook_secret", hide(config.GithubWebHookSecret)),
		zap.String("github_api_token", hide(config.GithubAPIToken)),
		zap.String("anthropic_api_key", hide(config.AnthropicAPIKey)),
		zap.String("bot_username", config.BotLogin()),
		zap.String("authorized_users", strings.Join(config.AuthorizedUsers, ",")),
		zap.String("pr_human_reviewer", config.PRHumanReviewer),
		zap.String("execution_mode", config.ExecutionMode),
		zap.Bool("dry_run", config.DryRun),
		zap.Bool("auto_tagging", config.AutoTagging),
		zap.Bool("labels_enabled", config.Labels.Enabled),
		zap.Int("event_filters", len(filters)),
		zap.String("sandbox_image", config.Sandbox.Image),
		zap.Duration("sandbox_timeout", config.Sandbox.Timeout),
		zap.String("sandbox_auth_host_dir", config.Sandbox.AuthHostDir),
		zap.String("log_format", config.LogFormat),
		zap.String("log_time_key", config.LogTimeKey),
		zap.String("log_level", config.LogLevel),
	)

	if config.GithubWebHookSecret == "" {
		logger.Warn("github_webhook_secret is not set, webhook signatures are not verified",
			logfields.Event("webhook_signature_verification_disabled"),
		)
	}

	if len(config.AuthorizedUsers) == 0 {
		logger.Warn("authorized_users is empty, issue assignments from all users are rejected",
			logfields.Event("authorized_users_empty"),
		)
	}

	goodbye.Register(func(_ context.Context, sig os.Signal) {
		logger.Info(fmt.Sprintf("terminating, received signal %s", sig.String()))
	})

	githubClient := mustInitGithubClient(config)

	executor := sandbox.NewExecutor(
		sandbox.Config{
			ExecutionMode:   config.ExecutionMode,
			BotUsername:     config.BotLogin(),
			Image:           config.Sandbox.Image,
			Timeout:         config.Sandbox.Timeout,
			AuthHostDir:     config.Sandbox.AuthHostDir,
			MemoryLimit:     config.Sandbox.MemoryLimit,
			CPULimit:        config.Sandbox.CPUs,
			PidsLimit:       config.Sandbox.PidsLimit,
			GithubToken:     config.GithubAPIToken,
			AnthropicAPIKey: config.AnthropicAPIKey,
			PRHumanReviewer: config.PRHumanReviewer,
		},
		sandbox.NewDockerCLI(config.Sandbox.RuntimeBin),
		githubClient,
	)

	// runs before the http servers are shut down, it cancels running
	// sandboxes and waits until their containers were killed
	goodbye.RegisterWithPriority(func(context.Context, os.Signal) {
		logger.Debug(
			"stopping sandbox executor",
			logfields.Event("sandbox_executor_stopping"),
		)

		executor.Stop()
	}, shutdownPriorityExecutor)

	rt := router.New(
		&router.Config{
			BotUsername:     config.BotLogin(),
			AuthorizedUsers: config.AuthorizedUsers,
			AutoTagging:     config.AutoTagging,
			Labels:          routerLabels(config),
			Filters:         filters,
			RetryTimeout:    config.ReporterRetryTimeout,
		},
		githubClient,
		executor,
	)

	goodbye.Register(func(context.Context, os.Signal) {
		logger.Debug(
			"stopping router",
			logfields.Event("router_stopping"),
		)

		rt.Stop()
	})

	gh := github.New(
		rt,
		github.WithPayloadSecret(config.GithubWebHookSecret),
	)

	mux := http.NewServeMux()

	mux.HandleFunc(config.HTTPGithubWebhookEndpoint, gh.HTTPHandler)
	logger.Info(
		"registered github webhook event http endpoint",
		logfields.Event("github_http_handler_registered"),
		zap.String("endpoint", config.HTTPGithubWebhookEndpoint),
	)

	mux.Handle(config.HTTPMetricsEndpoint, promhttp.Handler())
	mux.HandleFunc(healthEndpoint, healthHandler)

	if config.HTTPListenAddr != "" {
		startHTTPServer(config.HTTPListenAddr, mux)
	}

	if config.HTTPSListenAddr != "" {
		startHTTPSServer(
			config.HTTPSListenAddr,
			config.HTTPSCertFile,
			config.HTTPSKeyFile,
			mux,
		)
	}

	select {}
}
