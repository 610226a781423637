package cmds

import (
	"context"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-go-golems/loopdash/pkg/api"
	"github.com/go-go-golems/loopdash/pkg/auth"
	"github.com/go-go-golems/loopdash/pkg/config"
	"github.com/go-go-golems/loopdash/pkg/logfilter"
	"github.com/go-go-golems/loopdash/pkg/logjs"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// defaultPingInterval keeps idle push channels alive through proxies.
const defaultPingInterval = 30 * time.Second

type rootOptions struct {
	Server      string
	Config      string
	Credentials string
	Timeout     time.Duration

	File *config.File
}

func AddRootFlags(root *cobra.Command) {
	addRootFlags(root)
}

func addRootFlags(root *cobra.Command) {
	root.PersistentFlags().String("server", "", "Dashboard server base URL (e.g. http://localhost:8000)")
	root.PersistentFlags().String("config", "", "Path to config file (defaults to loopdash/config.yaml in the user config dir)")
	root.PersistentFlags().String("credentials", "", "Path to the credentials file (defaults to loopdash/credentials.yaml in the user config dir)")
	root.PersistentFlags().Duration("timeout", 30*time.Second, "Timeout for REST requests")
}

func getRootOptions(cmd *cobra.Command) (rootOptions, error) {
	flags := cmd.Root().PersistentFlags()

	cfgPath, err := flags.GetString("config")
	if err != nil {
		return rootOptions{}, err
	}
	explicitConfig := cfgPath != ""
	if !explicitConfig {
		cfgPath, err = config.DefaultPath()
		if err != nil {
			return rootOptions{}, err
		}
	}
	var file *config.File
	if explicitConfig {
		file, err = config.LoadFromFile(cfgPath)
	} else {
		file, err = config.LoadOptional(cfgPath)
	}
	if err != nil {
		return rootOptions{}, err
	}

	server, err := flags.GetString("server")
	if err != nil {
		return rootOptions{}, err
	}
	if server == "" {
		server = file.Server
	}

	credPath, err := flags.GetString("credentials")
	if err != nil {
		return rootOptions{}, err
	}
	if credPath == "" {
		credPath = file.CredentialsFile
	}
	if credPath == "" {
		credPath, err = auth.DefaultPath()
		if err != nil {
			return rootOptions{}, err
		}
	}

	timeout, err := flags.GetDuration("timeout")
	if err != nil {
		return rootOptions{}, err
	}
	if timeout <= 0 {
		return rootOptions{}, errors.New("timeout must be > 0")
	}

	opts := rootOptions{
		Server:      strings.TrimRight(strings.TrimSpace(server), "/"),
		Config:      cfgPath,
		Credentials: credPath,
		Timeout:     timeout,
		File:        file,
	}
	if opts.Server == "" {
		// fall back to the server the last login was made against
		if c, err := opts.store().Load(); err == nil && c.Server != "" {
			opts.Server = strings.TrimRight(c.Server, "/")
		}
	}
	return opts, nil
}

func (o rootOptions) store() *auth.Store {
	return auth.NewStore(o.Credentials)
}

func (o rootOptions) requireServer() error {
	if o.Server == "" {
		return errors.New("no server configured (use --server, set server in the config file, or run login)")
	}
	return nil
}

func (o rootOptions) client() (*api.Client, error) {
	if err := o.requireServer(); err != nil {
		return nil, err
	}
	store := o.store()
	var c *api.Client
	c = api.New(o.Server,
		api.WithTokenSource(store),
		api.WithTimeout(o.Timeout),
		api.WithRenewer(func(ctx context.Context) (bool, error) {
			return store.Renew(ctx, c.Refresh)
		}),
	)
	return c, nil
}

// renewOnRejection is the push channel's auth-rejection hook. It trades the
// stored refresh token for a new access token, which the scheduled reconnect
// then reads from the store. At most one exchange runs at a time.
func renewOnRejection(ctx context.Context, client *api.Client, store *auth.Store, timeout time.Duration) func() {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	var running atomic.Bool
	return func() {
		if !running.CompareAndSwap(false, true) {
			return
		}
		go func() {
			defer running.Store(false)
			rctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			ok, err := store.Renew(rctx, client.Refresh)
			switch {
			case err != nil:
				log.Warn().Err(err).Msg("could not renew access token, run login again")
			case ok:
				log.Info().Str("path", store.Path()).Msg("access token renewed")
			default:
				log.Debug().Msg("no refresh token stored")
			}
		}()
	}
}

// filterFlags are the log filter controls shared by tail and filter.
type filterFlags struct {
	search     string
	errors     bool
	iterations string
	js         []string
	jsTimeout  string
	noColor    bool
}

func (f *filterFlags) addTo(fs *pflag.FlagSet) {
	fs.StringVar(&f.search, "search", "", "Keep only lines containing this text (case-insensitive)")
	fs.BoolVar(&f.errors, "errors", false, "Keep only error lines")
	fs.StringVar(&f.iterations, "iterations", "", "Iteration range: N, N-M, N- or -M")
	fs.BoolVar(&f.noColor, "no-color", false, "Strip ANSI styling from log lines")
	f.addMarkerFlags(fs)
}

func (f *filterFlags) addMarkerFlags(fs *pflag.FlagSet) {
	fs.StringSliceVar(&f.js, "js", nil, "JS marker module(s) adding iteration markers and error detection")
	fs.StringVar(&f.jsTimeout, "js-timeout", "0", "Per-hook JS timeout (e.g. 50ms)")
}

func (f *filterFlags) criteria() (logfilter.Criteria, error) {
	c := logfilter.Criteria{Search: strings.TrimSpace(f.search), Mode: logfilter.ModeAll}
	if f.errors {
		c.Mode = logfilter.ModeErrors
	}
	from, to, err := logfilter.ParseRange(f.iterations)
	if err != nil {
		return logfilter.Criteria{}, errors.Wrap(err, "--iterations")
	}
	c.IterationFrom, c.IterationTo = from, to
	if err := c.Validate(); err != nil {
		return logfilter.Criteria{}, err
	}
	return c, nil
}

// engineOptions loads the JS marker modules from the config file and the
// flags, config first.
func (f *filterFlags) engineOptions(ctx context.Context, file *config.File) ([]logfilter.Option, error) {
	var paths []string
	if file != nil {
		paths = append(paths, file.MarkersJS...)
	}
	paths = append(paths, f.js...)
	return loadMarkerModules(ctx, paths, f.jsTimeout)
}

func loadMarkerModules(ctx context.Context, paths []string, timeout string) ([]logfilter.Option, error) {
	if len(paths) == 0 {
		return nil, nil
	}
	fan, err := logjs.LoadFanoutFromFiles(ctx, paths, logjs.Options{HookTimeout: timeout})
	if err != nil {
		return nil, err
	}
	return fan.FilterOptions(), nil
}

func stdinIsPipe() bool {
	fi, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice == 0
}
