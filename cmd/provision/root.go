package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"

	"github.com/autom8ter/provision/driver/embedded"
	"github.com/autom8ter/provision/errors"
	"github.com/autom8ter/provision/logging"
	"github.com/spf13/cobra"

	_ "github.com/autom8ter/provision/driver/arango"
)

const (
	localHost       = "local"
	rootPasswordEnv = "PROVISION_ROOT_PASSWORD"
)

type globalFlags struct {
	url            string
	rootPassword   string
	lenient        bool
	logLevel       string
	provider       string
	providerParams string
	storagePath    string
}

func rootCmd() *cobra.Command {
	var flags globalFlags
	cmd := &cobra.Command{
		Use:          "provision",
		Short:        "idempotently provision databases, users, collections, indexes, analyzers and search views",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&flags.url, "url", "", "server url (http://localhost:8529). defaults to an embedded server when --storage-path is set")
	cmd.PersistentFlags().StringVar(&flags.rootPassword, "root-password", "", fmt.Sprintf("root password (falls back to $%s)", rootPasswordEnv))
	cmd.PersistentFlags().BoolVar(&flags.lenient, "lenient", false, "skip descriptors of an unknown type instead of failing")
	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&flags.provider, "provider", "badger", "storage provider of the embedded server (badger, tikv)")
	cmd.PersistentFlags().StringVar(&flags.providerParams, "provider-params", "", "storage provider params of the embedded server (json)")
	cmd.PersistentFlags().StringVar(&flags.storagePath, "storage-path", "", "run an embedded server storing its data at this path")
	cmd.AddCommand(ensureCmd(&flags), migrateCmd(&flags), initCmd())
	return cmd
}

// session holds what every command needs once the flags are resolved
type session struct {
	url          string
	rootPassword string
	lenient      bool
	logger       logging.Logger
	close        func()
}

func (f *globalFlags) open(ctx context.Context) (*session, error) {
	logger, err := logging.New(f.logLevel, map[string]any{"app": "provision"})
	if err != nil {
		return nil, errors.Wrap(err, errors.Validation, "invalid log level")
	}
	s := &session{
		url:          f.url,
		rootPassword: f.rootPassword,
		lenient:      f.lenient,
		logger:       logger,
		close:        func() {},
	}
	if s.rootPassword == "" {
		s.rootPassword = os.Getenv(rootPasswordEnv)
	}
	if s.url == "" && (f.storagePath != "" || f.providerParams != "") {
		s.url = fmt.Sprintf("%s://%s", embedded.Scheme, localHost)
	}
	if s.url == "" {
		return nil, errors.New(errors.Validation, "--url or --storage-path is required")
	}
	u, err := url.Parse(s.url)
	if err != nil {
		return nil, errors.Wrap(err, errors.Validation, "invalid url")
	}
	if u.Scheme != embedded.Scheme {
		return s, nil
	}
	params := map[string]any{}
	if f.providerParams != "" {
		if err := json.Unmarshal([]byte(f.providerParams), &params); err != nil {
			return nil, errors.Wrap(err, errors.Validation, "failed to parse provider params")
		}
	}
	if f.storagePath != "" {
		params["storage_path"] = f.storagePath
	}
	srv, err := embedded.New(ctx, embedded.Config{
		Provider:     f.provider,
		Params:       params,
		RootPassword: s.rootPassword,
		Logger:       logger,
	})
	if err != nil {
		return nil, err
	}
	embedded.Register(u.Host, srv)
	s.close = func() {
		embedded.Deregister(u.Host)
		if err := srv.Close(ctx); err != nil {
			logger.Error(ctx, "failed to close embedded server", err, map[string]any{})
		}
	}
	return s, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
