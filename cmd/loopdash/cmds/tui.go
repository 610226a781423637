package cmds

import (
	"context"
	stderrors "errors"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/go-go-golems/loopdash/pkg/connection"
	"github.com/go-go-golems/loopdash/pkg/events"
	"github.com/go-go-golems/loopdash/pkg/logbuf"
	"github.com/go-go-golems/loopdash/pkg/render"
	"github.com/go-go-golems/loopdash/pkg/tui"
	"github.com/go-go-golems/loopdash/pkg/tui/models"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newTuiCmd() *cobra.Command {
	var altScreen bool
	var projects []string
	var filters filterFlags

	cmd := &cobra.Command{
		Use:   "tui",
		Short: "Interactive dashboard: project status, live logs and the event feed",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := getRootOptions(cmd)
			if err != nil {
				return err
			}
			client, err := opts.client()
			if err != nil {
				return err
			}
			endpoint, err := connection.PushEndpoint(opts.Server)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			filterOpts, err := filters.engineOptions(ctx, opts.File)
			if err != nil {
				return err
			}
			overscan := render.DefaultOverscan
			if opts.File.Overscan > 0 {
				overscan = opts.File.Overscan
			}
			pipe := render.New(render.WithOverscan(overscan), render.WithFilterOptions(filterOpts...))
			agg := logbuf.New(client)

			bus, err := tui.NewInMemoryBus()
			if err != nil {
				return err
			}
			tui.RegisterDomainToUITransformer(bus)

			router := events.NewRouter()
			pump := &tui.Pump{Pub: bus.Publisher, Logs: agg}
			detach := pump.Attach(router)
			defer detach()

			store := opts.store()
			var mgr *connection.Manager
			mgr = connection.NewManager(connection.Options{
				Endpoint:     endpoint,
				Credentials:  store,
				PingInterval: defaultPingInterval,
				OnEnvelope:   router.Dispatch,
				OnStateChange: func(s connection.State) {
					pump.ConnectionChanged(s, mgr.Attempt())
				},
				OnAuthRejected: renewOnRejection(ctx, client, store, opts.Timeout),
			})
			defer mgr.Close()
			tui.RegisterUIActionRunner(bus, mgr)

			if len(projects) == 0 {
				projects = opts.File.Projects
			}
			model := models.NewRootModel(models.RootOptions{
				Backend:        client,
				Subscriptions:  mgr,
				Projects:       projects,
				RequestTimeout: opts.Timeout,
				PublishAction: func(req tui.ActionRequest) error {
					return tui.PublishAction(bus.Publisher, req)
				},
				LogView: models.LogViewOptions{
					Aggregator:      agg,
					Pipeline:        pipe,
					FollowThreshold: opts.File.FollowThreshold,
				},
			})

			programOptions := []tea.ProgramOption{
				tea.WithInput(cmd.InOrStdin()),
				tea.WithOutput(cmd.OutOrStdout()),
			}
			if altScreen {
				programOptions = append(programOptions, tea.WithAltScreen())
			}
			program := tea.NewProgram(model, programOptions...)
			tui.RegisterUIForwarder(bus, program)

			eg, egCtx := errgroup.WithContext(ctx)
			eg.Go(func() error {
				err := bus.Run(egCtx)
				if stderrors.Is(err, context.Canceled) {
					return nil
				}
				return err
			})
			eg.Go(func() error {
				// connect only once the forwarders can take the state changes
				select {
				case <-bus.Running():
					mgr.SetEnabled(true)
				case <-egCtx.Done():
				}
				return nil
			})
			eg.Go(func() error {
				if err := store.Watch(egCtx, mgr.CredentialsChanged); err != nil {
					log.Warn().Err(err).Str("path", store.Path()).Msg("not watching credentials")
				}
				return nil
			})
			eg.Go(func() error {
				_, err := program.Run()
				cancel()
				if stderrors.Is(err, context.Canceled) || stderrors.Is(err, tea.ErrProgramKilled) {
					return nil
				}
				return err
			})

			if err := eg.Wait(); err != nil {
				return errors.Wrap(err, "tui")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&altScreen, "alt-screen", true, "Use the terminal alternate screen buffer")
	cmd.Flags().StringSliceVar(&projects, "project", nil, "Only show these project ids (repeatable; defaults to projects from the config file, then all)")
	filters.addMarkerFlags(cmd.Flags())
	return cmd
}
