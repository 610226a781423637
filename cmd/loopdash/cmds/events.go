package cmds

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"os"
	"os/signal"
	"sync"

	"github.com/go-go-golems/loopdash/pkg/connection"
	"github.com/go-go-golems/loopdash/pkg/events"
	"github.com/go-go-golems/loopdash/pkg/protocol"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newEventsCmd() *cobra.Command {
	var types []string
	var quiet bool

	cmd := &cobra.Command{
		Use:   "events [PROJECT...]",
		Short: "Stream push events as JSON lines (all listed projects when none are given)",
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

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			projects := args
			if len(projects) == 0 {
				projects = opts.File.Projects
			}
			if len(projects) == 0 {
				rctx, cancel := context.WithTimeout(ctx, opts.Timeout)
				ps, err := client.ListProjects(rctx)
				cancel()
				if err != nil {
					return errors.Wrap(err, "list projects")
				}
				for _, p := range ps {
					projects = append(projects, p.ID)
				}
			}
			if len(projects) == 0 {
				return errors.New("no projects to follow")
			}

			stderr := cmd.ErrOrStderr()
			if quiet {
				stderr = io.Discard
			}

			w := newEventWriter(cmd.OutOrStdout(), types)
			router := events.NewRouter()
			router.Subscribe(func(ev events.Event) {
				if err := w.Write(ev); err != nil {
					log.Debug().Err(err).Msg("write event")
				}
			})

			store := opts.store()
			var mgr *connection.Manager
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
			mgr.SetSubscriptions(projects)
			mgr.SetEnabled(true)

			<-ctx.Done()
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&types, "type", nil, "Only print these event types (e.g. log_append,iteration_completed)")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Do not print connection status to stderr")
	return cmd
}

// eventWriter encodes one event per line. Events arrive from the connection
// goroutine only, the mutex guards against a late write racing the flush.
type eventWriter struct {
	mu    sync.Mutex
	bw    *bufio.Writer
	enc   *json.Encoder
	types map[protocol.EventType]bool
}

func newEventWriter(w io.Writer, types []string) *eventWriter {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	enc.SetEscapeHTML(false)
	ew := &eventWriter{bw: bw, enc: enc}
	if len(types) > 0 {
		ew.types = map[protocol.EventType]bool{}
		for _, t := range types {
			ew.types[protocol.EventType(t)] = true
		}
	}
	return ew
}

func (w *eventWriter) Write(ev events.Event) error {
	if w.types != nil && !w.types[ev.Envelope.Type] {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.enc.Encode(ev); err != nil {
		return err
	}
	return w.bw.Flush()
}
