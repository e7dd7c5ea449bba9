// Package chatcmder provides the chat command: a text-mode voice agent session
// against a Dify backend, with per-call completion metrics recorded to the
// configured storage and event stream.
package chatcmder

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/papercomputeco/difyvoice/pkg/agent"
	"github.com/papercomputeco/difyvoice/pkg/cliui"
	"github.com/papercomputeco/difyvoice/pkg/config"
	"github.com/papercomputeco/difyvoice/pkg/dify"
	"github.com/papercomputeco/difyvoice/pkg/envfile"
	"github.com/papercomputeco/difyvoice/pkg/eventstream"
	"github.com/papercomputeco/difyvoice/pkg/llm"
	"github.com/papercomputeco/difyvoice/pkg/logger"
	"github.com/papercomputeco/difyvoice/pkg/sink"
	"github.com/papercomputeco/difyvoice/pkg/utils"
	"github.com/papercomputeco/difyvoice/pkg/worker"
)

var (
	userPrompt  = cliui.UserStyle.Render("you> ")
	agentPrompt = cliui.AgentStyle.Render("agent> ")
)

type chatCommander struct {
	debug      bool
	logFile    string
	dumpStream string

	// Flag targets. Values are read back through viper.
	baseURL      string
	difyUser     string
	timeout      string
	agentName    string
	envFile      string
	sqlitePath   string
	postgresDSN  string
	kafkaBrokers string
	kafkaTopic   string
	numWorkers   uint
	queueSize    uint

	viper  *viper.Viper
	logger *slog.Logger

	in  io.Reader
	out io.Writer
}

var chatFlags = []string{
	config.FlagDifyBaseURL,
	config.FlagDifyUser,
	config.FlagDifyTimeout,
	config.FlagAgentName,
	config.FlagEnvFile,
	config.FlagSQLite,
	config.FlagPostgres,
	config.FlagKafkaBrokers,
	config.FlagKafkaTopic,
	config.FlagNumWorkers,
	config.FlagQueueSize,
}

const chatLongDesc string = `Start a text-mode voice agent session against a Dify backend.

Each line typed is sent as the user's utterance; the answer is streamed back
fragment by fragment. The agent env file (default .env.local) provides
DIFY_API_KEY, DIFY_BASE_URL, USERNAME, VOICE and AGENT_NAME and is reloaded
when it changes.

Every call records one completion metrics record (duration, time to first
token, token counts) to the configured storage and, when brokers are set,
publishes it to Kafka.

Examples:
  difyvoice chat
  difyvoice chat --agent stewardess --sqlite ~/.difyvoice/metrics.sqlite
  difyvoice chat --dump-stream /tmp/dify.sse --debug`

const chatShortDesc string = "Chat with the Dify-backed voice agent"

func NewChatCmd() *cobra.Command {
	cmder := &chatCommander{}

	cmd := &cobra.Command{
		Use:   "chat",
		Short: chatShortDesc,
		Long:  chatLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			config.BindRegisteredFlags(v, cmd, config.Flags, chatFlags)
			cmder.viper = v
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}
			cmder.logFile, _ = cmd.Flags().GetString("log-file")

			cmder.in = cmd.InOrStdin()
			cmder.out = cmd.OutOrStdout()

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			return cmder.run(ctx, cmd.Flags().Changed("agent"))
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagDifyBaseURL, &cmder.baseURL)
	config.AddStringFlag(cmd, config.Flags, config.FlagDifyUser, &cmder.difyUser)
	config.AddStringFlag(cmd, config.Flags, config.FlagDifyTimeout, &cmder.timeout)
	config.AddStringFlag(cmd, config.Flags, config.FlagAgentName, &cmder.agentName)
	config.AddStringFlag(cmd, config.Flags, config.FlagEnvFile, &cmder.envFile)
	config.AddStringFlag(cmd, config.Flags, config.FlagSQLite, &cmder.sqlitePath)
	config.AddStringFlag(cmd, config.Flags, config.FlagPostgres, &cmder.postgresDSN)
	config.AddStringFlag(cmd, config.Flags, config.FlagKafkaBrokers, &cmder.kafkaBrokers)
	config.AddStringFlag(cmd, config.Flags, config.FlagKafkaTopic, &cmder.kafkaTopic)
	config.AddUintFlag(cmd, config.Flags, config.FlagNumWorkers, &cmder.numWorkers)
	config.AddUintFlag(cmd, config.Flags, config.FlagQueueSize, &cmder.queueSize)
	cmd.Flags().StringVar(&cmder.dumpStream, "dump-stream", "", "Append the raw SSE stream of every call to this file")

	return cmd
}

func (c *chatCommander) run(ctx context.Context, agentFlagSet bool) error {
	log, closeLog, err := logger.CLI(os.Stderr, c.debug, c.logFile)
	if err != nil {
		return err
	}
	defer closeLog()
	c.logger = log

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	envPath := c.viper.GetString("agent.env_file")
	c.loadEnvFile(envPath)

	settings := c.resolveSettings(agentFlagSet)
	c.logger.Info("starting agent", "agent_name", settings.AgentName, "voice", settings.Voice)

	timeout, err := (config.DifyConfig{Timeout: c.viper.GetString("dify.timeout")}).TimeoutDuration()
	if err != nil {
		return err
	}

	var dump io.Writer
	if c.dumpStream != "" {
		f, err := os.OpenFile(c.dumpStream, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return fmt.Errorf("opening stream dump: %w", err)
		}
		defer f.Close()
		dump = &lockedWriter{w: f}
	}

	factory := &clientFactory{
		user:    c.viper.GetString("dify.user"),
		timeout: timeout,
		dump:    dump,
		logger:  c.logger,
	}

	client, err := factory.build(settings)
	if err != nil {
		return err
	}

	metricsSink, err := sink.Open(ctx, sink.Options{
		PostgresDSN:  c.viper.GetString("storage.postgres_dsn"),
		SQLitePath:   c.viper.GetString("storage.sqlite_path"),
		KafkaBrokers: config.SplitList(c.viper.GetString("eventstream.kafka_brokers")),
		KafkaTopic:   c.viper.GetString("eventstream.kafka_topic"),
		NumWorkers:   c.viper.GetUint("worker.num_workers"),
		QueueSize:    c.viper.GetUint("worker.queue_size"),
		Source: eventSource(settings, client),
		Logger: c.logger,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := metricsSink.Close(); err != nil {
			c.logger.Warn("closing metrics sink", "error", err)
		}
	}()

	turnMetrics := llm.NewMetricsQueue(16)
	factory.observers = []llm.MetricsObserver{metricsSink.Pool, turnMetrics}
	factory.attach(client)

	session, err := agent.NewSession(agent.SessionConfig{
		Streamer: client,
		Speaker:  &consoleSpeaker{out: c.out},
		Observer: agent.LogObserver{Logger: c.logger},
		Logger:   c.logger,
	})
	if err != nil {
		return err
	}

	if envPath != "" {
		watcher := envfile.NewWatcher(envPath, func(env map[string]string) {
			c.reload(env, agentFlagSet, factory, session, metricsSink.Pool)
		}, envfile.WithLogger(c.logger))

		watchCtx, cancelWatch := context.WithCancel(ctx)
		defer cancelWatch()
		go func() {
			if err := watcher.Run(watchCtx); err != nil && !errors.Is(err, context.Canceled) {
				c.logger.Warn("env file watcher stopped", "error", err)
			}
		}()
	}

	fmt.Fprintln(c.out)
	fmt.Fprintf(c.out, "  %s %s\n", cliui.KeyStyle.Render("Agent:"), cliui.AgentStyle.Render(settings.AgentName))
	if settings.Voice != "" {
		fmt.Fprintf(c.out, "  %s %s\n", cliui.KeyStyle.Render("Voice:"), cliui.ValueStyle.Render(settings.Voice))
	}
	fmt.Fprintf(c.out, "  %s %s\n\n", cliui.KeyStyle.Render("Backend:"), cliui.DimStyle.Render(settings.BaseURL))

	if _, ok := agent.Greeting(settings.AgentName); ok {
		fmt.Fprint(c.out, agentPrompt)
	}
	if ok, _ := session.Greet(ctx, settings.AgentName); ok {
		fmt.Fprintln(c.out)
	}

	return c.loop(ctx, session, turnMetrics)
}

func (c *chatCommander) loop(ctx context.Context, session *agent.Session, turnMetrics *llm.MetricsQueue) error {
	interactive := isTerminal(c.in)
	if interactive {
		fmt.Fprintf(c.out, "  %s\n\n", cliui.DimStyle.Render("Type your message and press Enter. /exit or Ctrl+D to quit."))
	}

	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(c.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	for {
		if interactive {
			fmt.Fprint(c.out, userPrompt)
		}

		var line string
		var ok bool
		select {
		case <-ctx.Done():
			fmt.Fprintln(c.out)
			return nil
		case line, ok = <-lines:
		}
		if !ok {
			break
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}
		if input == "/exit" {
			break
		}

		session.Listen(input)
		fmt.Fprint(c.out, agentPrompt)
		_, err := session.HandleUserTurn(ctx, input)
		fmt.Fprintln(c.out)
		if err != nil {
			fmt.Fprintf(c.out, "  %s %v\n", cliui.FailMark, err)
		}

		c.printTurnMetrics(turnMetrics)
		fmt.Fprintln(c.out)
	}

	select {
	case err := <-scanErr:
		if err != nil {
			return fmt.Errorf("reading input: %w", err)
		}
	default:
	}

	return nil
}

func (c *chatCommander) printTurnMetrics(q *llm.MetricsQueue) {
	for {
		select {
		case m := <-q.C():
			fmt.Fprintf(c.out, "  %s\n", cliui.DimStyle.Render(fmt.Sprintf(
				"ttft %.2fs · %d tokens · %.1f tok/s · %s",
				m.TTFT, m.TotalTokens, m.TokensPerSecond, utils.Truncate(m.RequestID, 8),
			)))
		default:
			return
		}
	}
}

// loadEnvFile loads the env file into the process environment. A missing
// file is not fatal: the variables may already be exported, and the watcher
// loads the file once it appears.
func (c *chatCommander) loadEnvFile(path string) {
	if path == "" {
		return
	}

	if err := envfile.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			c.logger.Warn("env file not found, using process environment", "path", path)
		} else {
			c.logger.Warn("env file could not be loaded", "path", path, "error", err)
		}
		return
	}

	c.logger.Debug("loaded env file", "path", path)
}

// resolveSettings merges the env file settings with config.toml values. The
// env file wins, except that an explicit --agent flag wins over AGENT_NAME.
func (c *chatCommander) resolveSettings(agentFlagSet bool) agent.Settings {
	s := agent.SettingsFromEnv()

	if s.BaseURL == "" {
		s.BaseURL = c.viper.GetString("dify.base_url")
	}
	if s.Username == "" {
		s.Username = c.viper.GetString("agent.username")
	}
	if s.Voice == "" {
		s.Voice = c.viper.GetString("agent.voice")
	}

	_, envHasName := os.LookupEnv(agent.EnvAgentName)
	if agentFlagSet || !envHasName {
		if name := c.viper.GetString("agent.name"); name != "" {
			s.AgentName = name
		}
	}

	return s
}

// reload rebuilds the Dify client after the env file changed and restamps
// the event source for later metrics.
func (c *chatCommander) reload(env map[string]string, agentFlagSet bool, factory *clientFactory, session *agent.Session, pool *worker.Pool) {
	changed, err := envfile.Apply(env, true)
	if err != nil {
		c.logger.Warn("applying reloaded env file", "error", err)
		return
	}
	if len(changed) == 0 {
		return
	}

	settings := c.resolveSettings(agentFlagSet)
	client, err := factory.build(settings)
	if err != nil {
		c.logger.Warn("keeping previous dify client", "error", err)
		return
	}

	factory.attach(client)
	pool.SetSource(eventSource(settings, client))
	session.SetStreamer(client)
	c.logger.Info("env file changed, dify client rebuilt", "changed", changed)
}

func eventSource(s agent.Settings, client *dify.Client) eventstream.EventSource {
	return eventstream.EventSource{
		AgentName: s.AgentName,
		Username:  client.Username(),
		Label:     client.Label(),
	}
}

// clientFactory builds Dify clients and moves metrics observers to the
// newest one.
type clientFactory struct {
	user    string
	timeout time.Duration
	dump    io.Writer
	logger  *slog.Logger

	observers []llm.MetricsObserver

	mu          sync.Mutex
	unsubscribe []func()
}

func (f *clientFactory) build(s agent.Settings) (*dify.Client, error) {
	timeout := f.timeout
	if timeout == 0 {
		timeout = -1
	}

	client, err := dify.New(dify.Config{
		APIKey:     s.APIKey,
		BaseURL:    s.BaseURL,
		Username:   s.Username,
		User:       f.user,
		Timeout:    timeout,
		StreamDump: f.dump,
		Logger:     f.logger,
	})
	if err != nil {
		if errors.Is(err, dify.ErrMissingBaseURL) {
			return nil, fmt.Errorf("%w: set %s in the env file or dify.base_url in config", err, agent.EnvDifyBaseURL)
		}
		return nil, err
	}
	return client, nil
}

func (f *clientFactory) attach(client *dify.Client) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, unsub := range f.unsubscribe {
		unsub()
	}
	f.unsubscribe = f.unsubscribe[:0]
	for _, obs := range f.observers {
		f.unsubscribe = append(f.unsubscribe, client.OnMetrics(obs))
	}
}

// consoleSpeaker prints answer fragments as they stream in.
type consoleSpeaker struct {
	out io.Writer
}

func (s *consoleSpeaker) Speak(_ context.Context, text string) error {
	_, err := io.WriteString(s.out, text)
	return err
}

// lockedWriter serializes writes from concurrent calls.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
