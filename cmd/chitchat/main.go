/*
Package main is the chitchat terminal client.

It logs in to a chitchat server, keeps the session token in a file shared by every client
process of the user, and runs an interactive chat on stdin/stdout.
*/
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"chitchat/internal/client/api"
	"chitchat/internal/client/auth"
	"chitchat/internal/client/bootstrap"
	"chitchat/internal/client/tokenstore"
	"chitchat/internal/configs"
	"chitchat/internal/pkg/logx"
)

var (
	configFile string
	serverURL  string
	tokenFile  string
	debug      bool

	cfg *configs.ClientConfig
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "chitchat",
	Short: "Terminal client for chitchat channels",
	Long: `chitchat joins a chat channel from the terminal.

Log in once with 'chitchat login', then run 'chitchat chat'. The session token is shared by
every chitchat process of the user, so 'chitchat logout' in one terminal ends the session
everywhere.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Config file (TOML, default "+configs.DefaultClientConfigPath()+")")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "Server base URL")
	rootCmd.PersistentFlags().StringVar(&tokenFile, "token-file", "", "Session token file")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging on stderr")
}

// setup resolves the configuration (defaults, file, env, flags) and initializes logging.
func setup(cmd *cobra.Command, _ []string) error {
	loaded, err := configs.LoadClientConfig(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if cmd.Flags().Changed("server") {
		loaded.ServerURL = serverURL
	}
	if cmd.Flags().Changed("token-file") {
		loaded.TokenFile = tokenFile
	}
	if debug {
		loaded.Environment = "development"
	}

	if err := loaded.Validate(); err != nil {
		return err
	}
	cfg = loaded

	level := zerolog.WarnLevel
	if cfg.IsDevelopment() {
		level = zerolog.DebugLevel
	}
	logx.InitWithWriter(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}, level)

	return nil
}

// clientDeps are the collaborators every command builds from cfg.
type clientDeps struct {
	api    *api.Client
	tokens *tokenstore.File
	auth   *auth.Service
	loader *bootstrap.Loader
}

func newClientDeps() (*clientDeps, error) {
	client, err := api.New(cfg.ServerURL, cfg.RequestTimeout)
	if err != nil {
		return nil, err
	}

	tokens := tokenstore.NewFile(cfg.TokenFile)

	loader := bootstrap.NewLoader(client, tokens)
	loader.SlowAfter = cfg.SlowAfter

	return &clientDeps{
		api:    client,
		tokens: tokens,
		auth:   auth.NewService(client, tokens),
		loader: loader,
	}, nil
}
