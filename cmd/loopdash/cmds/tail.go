package cmds

import (
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/go-go-golems/loopdash/pkg/connection"
	"github.com/go-go-golems/loopdash/pkg/events"
	"github.com/go-go-golems/loopdash/pkg/logbuf"
	"github.com/go-go-golems/loopdash/pkg/logfilter"
	"github.com/go-go-golems/loopdash/pkg/protocol"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newTailCmd() *cobra.Command {
	var follow bool
	var quiet bool
	var filters filterFlags

	cmd := &cobra.Command{
		Use:   "tail PROJECT",
		Short: "Print a project's log history, then follow live output",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			project := args[0]
			opts, err := getRootOptions(cmd)
			if err != nil {
				return err
			}
			client, err := opts.client()
			if err != nil {
				return err
			}
			criteria, err := filters.criteria()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			engineOpts, err := filters.engineOptions(ctx, opts.File)
			if err != nil {
				return err
			}
			printer := newLinePrinter(cmd.OutOrStdout(), logfilter.NewEngine(criteria, engineOpts...), filters.noColor)
			stderr := cmd.ErrOrStderr()
			if quiet {
				stderr = io.Discard
			}

			agg := logbuf.New(client)
			ticket := agg.Reset(project)

			store := opts.store()
			var mgr *connection.Manager
			if follow {
				endpoint, err := connection.PushEndpoint(opts.Server)
				if err != nil {
					return err
				}
				router := events.NewRouter()
				router.Subscribe(func(ev events.Event) {
					if ev.Chunk != nil {
						if agg.Append(*ev.Chunk) {
							if err := printer.Feed(agg.Text()); err != nil {
								log.Debug().Err(err).Msg("write tail output")
							}
						}
						return
					}
					printEnvelopeStatus(stderr, ev.Envelope)
				})
				mgr = connection.NewManager(connection.Options{
					Endpoint:     endpoint,
					Credentials:  store,
					PingInterval: defaultPingInterval,
					OnEnvelope:   router.Dispatch,
					OnStateChange: func(s connection.State) {
						connectionStatus(stderr, s, mgr.Attempt())
					},
					OnAuthRejected: renewOnRejection(ctx, client, store, opts.Timeout),
				})
				defer mgr.Close()
				// subscribe before hydrating so nothing is lost in between;
				// chunks arriving early are held back until history is in
				mgr.SetSubscriptions([]string{project})
				mgr.SetEnabled(true)
			}

			infof(stderr, "loading history for %s", project)
			if err := agg.Hydrate(ctx, ticket); err != nil {
				return errors.Wrapf(err, "load history for %s", project)
			}
			if err := printer.Feed(agg.Text()); err != nil {
				return err
			}
			if !follow {
				return nil
			}

			<-ctx.Done()
			return nil
		},
	}

	filters.addTo(cmd.Flags())
	cmd.Flags().BoolVarP(&follow, "follow", "f", true, "Keep following live output after the history")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Do not print status lines to stderr")
	return cmd
}

// printEnvelopeStatus renders the non-log push events as status lines.
func printEnvelopeStatus(w io.Writer, env protocol.Envelope) {
	switch env.Type {
	case protocol.EventIterationStarted:
		var d protocol.IterationStarted
		if env.DecodeData(&d) == nil {
			infof(w, "[%s] iteration %s started", env.Project, iterationOf(d.Iteration, d.Max))
		}
	case protocol.EventIterationCompleted:
		var d protocol.IterationCompleted
		if env.DecodeData(&d) != nil {
			return
		}
		if len(d.Errors) > 0 {
			errorf(w, "[%s] iteration %s %s: %d errors", env.Project, iterationOf(d.Iteration, d.Max), d.Status, len(d.Errors))
			return
		}
		okf(w, "[%s] iteration %s %s", env.Project, iterationOf(d.Iteration, d.Max), d.Status)
	case protocol.EventStatusChanged:
		var d protocol.StatusChanged
		if env.DecodeData(&d) == nil {
			infof(w, "[%s] status %s -> %s", env.Project, d.Previous, d.Status)
		}
	case protocol.EventError:
		errorf(w, "server error: %s", env.Message)
	}
}

func iterationOf(n, max int) string {
	if max > 0 {
		return fmt.Sprintf("%d/%d", n, max)
	}
	return fmt.Sprintf("%d", n)
}
