package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"zkv-router/internal/app"
	"zkv-router/internal/config"
	"zkv-router/internal/logging"
	"zkv-router/internal/metrics"
)

// state is shared by every subcommand of one root command.
type state struct {
	configPath  string
	verbose     bool
	metricsFile string

	cfg       *config.Config
	logger    *logrus.Logger
	logCloser io.Closer
	container *app.ServiceContainer

	// mnemonic is replaced in tests
	mnemonic func() (string, error)
}

// log is the base entry every command logs through.
func (s *state) log() *logrus.Entry {
	return logrus.NewEntry(s.logger)
}

// services builds the component graph once per process.
func (s *state) services() (*app.ServiceContainer, error) {
	if s.container != nil {
		return s.container, nil
	}
	c, err := app.NewServiceContainer(s.cfg, s.log())
	if err != nil {
		return nil, err
	}
	s.container = c
	return c, nil
}

func (s *state) shutdown() error {
	if s.container != nil {
		if err := s.container.Close(); err != nil {
			s.logger.WithError(err).Warn("failed to close services")
		}
	}
	if path := s.metricsPath(); path != "" {
		if err := metrics.WriteTextfile(path); err != nil {
			s.logger.WithError(err).Warn("failed to write metrics")
		}
	}
	if s.logCloser != nil {
		return s.logCloser.Close()
	}
	return nil
}

// run wraps a command body so that shutdown happens on failure too.
func (s *state) run(fn func(cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		defer func() {
			if cerr := s.shutdown(); err == nil {
				err = cerr
			}
		}()
		return fn(cmd, args)
	}
}

func (s *state) metricsPath() string {
	if s.metricsFile != "" {
		return s.metricsFile
	}
	if s.cfg != nil {
		return s.cfg.Metrics.Textfile
	}
	return ""
}

// NewRootCmd builds the zkv-router command tree.
func NewRootCmd() *cobra.Command {
	s := &state{mnemonic: config.Mnemonic}

	root := &cobra.Command{
		Use:   "zkv-router",
		Short: "Route explorer proof requests onto the verification chain",
		Long: `zkv-router turns a proof request published on the prover network explorer
into a canonical proof record and submits it to the verification chain.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(s.configPath)
			if err != nil {
				return err
			}
			s.cfg = cfg

			logger, closer, err := logging.New(cfg.Log, s.verbose)
			if err != nil {
				return err
			}
			s.logger = logger
			s.logCloser = closer
			return nil
		},
	}

	root.PersistentFlags().StringVar(&s.configPath, "config", "", "config file (default config.local.yaml or config.yaml)")
	root.PersistentFlags().BoolVarP(&s.verbose, "verbose", "v", false, "debug logging, including a preview of the rendered page")
	root.PersistentFlags().StringVar(&s.metricsFile, "metrics-file", "", "write Prometheus metrics to this textfile on exit")

	root.AddCommand(
		newConvertCmd(s),
		newRunCmd(s),
		newSubmitCmd(s),
		newRemarkCmd(s),
		newPalletsCmd(s),
		newHistoryCmd(s),
		newServeCmd(s),
	)
	return root
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	root := NewRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
