package cmds

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/go-go-golems/glazed/pkg/cli"
	glazedcmds "github.com/go-go-golems/glazed/pkg/cmds"
	"github.com/go-go-golems/glazed/pkg/cmds/layers"
	"github.com/go-go-golems/glazed/pkg/cmds/parameters"
	"github.com/go-go-golems/loopdash/pkg/api"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

type IterationsCommand struct {
	*glazedcmds.CommandDescription

	// cobra is the command built from this description; root flags are read
	// from it at run time.
	cobra *cobra.Command
}

var _ glazedcmds.WriterCommand = (*IterationsCommand)(nil)

type iterationsSettings struct {
	Project string `glazed.parameter:"project"`
	Status  string `glazed.parameter:"status"`
	Limit   int    `glazed.parameter:"limit"`
	Offset  int    `glazed.parameter:"offset"`
	Number  int    `glazed.parameter:"number"`
	Format  string `glazed.parameter:"format"`
}

func NewIterationsCommand() (*IterationsCommand, error) {
	return &IterationsCommand{
		CommandDescription: glazedcmds.NewCommandDescription(
			"iterations",
			glazedcmds.WithShort("List a project's iterations, or print one iteration's log"),
			glazedcmds.WithFlags(
				parameters.NewParameterDefinition(
					"status",
					parameters.ParameterTypeChoice,
					parameters.WithHelp("Only iterations with this outcome"),
					parameters.WithChoices(string(api.StatusAll), string(api.StatusSuccess), string(api.StatusFailed)),
					parameters.WithDefault(string(api.StatusAll)),
				),
				parameters.NewParameterDefinition(
					"limit",
					parameters.ParameterTypeInteger,
					parameters.WithHelp("Page size (0 lists every iteration)"),
					parameters.WithDefault(0),
				),
				parameters.NewParameterDefinition(
					"offset",
					parameters.ParameterTypeInteger,
					parameters.WithHelp("Skip this many iterations"),
					parameters.WithDefault(0),
				),
				parameters.NewParameterDefinition(
					"number",
					parameters.ParameterTypeInteger,
					parameters.WithHelp("Print the log output of this iteration instead of the listing"),
					parameters.WithDefault(0),
				),
				parameters.NewParameterDefinition(
					"format",
					parameters.ParameterTypeChoice,
					parameters.WithHelp("Listing format"),
					parameters.WithChoices("table", "json"),
					parameters.WithDefault("table"),
				),
			),
			glazedcmds.WithArguments(
				parameters.NewParameterDefinition(
					"project",
					parameters.ParameterTypeString,
					parameters.WithHelp("Project id"),
					parameters.WithRequired(true),
				),
			),
		),
	}, nil
}

func (c *IterationsCommand) RunIntoWriter(ctx context.Context, parsedLayers *layers.ParsedLayers, w io.Writer) error {
	s := &iterationsSettings{}
	if err := parsedLayers.InitializeStruct(layers.DefaultSlug, s); err != nil {
		return errors.Wrap(err, "parse iterations settings")
	}
	if c.cobra == nil {
		return errors.New("iterations command is not attached to a root command")
	}
	opts, err := getRootOptions(c.cobra)
	if err != nil {
		return err
	}
	client, err := opts.client()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	if s.Number > 0 {
		d, err := client.GetIteration(ctx, s.Project, s.Number)
		if err != nil {
			return err
		}
		_, err = io.WriteString(w, d.LogOutput)
		return err
	}

	its, total, err := listIterations(ctx, client, s)
	if err != nil {
		return err
	}
	if s.Format == "json" {
		b, err := json.MarshalIndent(map[string]any{"iterations": its, "total": total}, "", "  ")
		if err != nil {
			return errors.Wrap(err, "marshal output")
		}
		_, _ = fmt.Fprintln(w, string(b))
		return nil
	}
	return writeIterationTable(w, its)
}

func listIterations(ctx context.Context, client *api.Client, s *iterationsSettings) ([]api.IterationSummary, int, error) {
	status := api.StatusFilter(s.Status)
	if s.Limit <= 0 && s.Offset == 0 && (status == "" || status == api.StatusAll) {
		its, err := client.AllIterations(ctx, s.Project)
		if err != nil {
			return nil, 0, err
		}
		return its, len(its), nil
	}
	limit := s.Limit
	if limit <= 0 {
		limit = api.MaxPageSize
	}
	list, err := client.ListIterations(ctx, s.Project, api.ListIterationsOptions{
		Status: status,
		Limit:  limit,
		Offset: s.Offset,
	})
	if err != nil {
		return nil, 0, err
	}
	return list.Iterations, list.Total, nil
}

func writeIterationTable(w io.Writer, its []api.IterationSummary) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "#\tSTATUS\tSTARTED\tDURATION\tTOKENS\tTASKS\tERRORS\tCOMMIT")
	for _, it := range its {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t%d\t%s\n",
			iterationNumber(it),
			orDash(it.Status),
			orDash(it.StartTimestamp),
			formatSeconds(it.DurationSeconds),
			formatTokens(it.TokensUsed),
			len(it.TasksCompleted),
			len(it.Errors),
			orDash(shortCommit(it.Commit)),
		)
	}
	return tw.Flush()
}

func iterationNumber(it api.IterationSummary) string {
	if it.MaxIterations != nil && *it.MaxIterations > 0 {
		return fmt.Sprintf("%d/%d", it.Number, *it.MaxIterations)
	}
	return strconv.Itoa(it.Number)
}

func formatSeconds(s *float64) string {
	if s == nil {
		return "-"
	}
	return fmt.Sprintf("%.0fs", *s)
}

func formatTokens(t *float64) string {
	if t == nil {
		return "-"
	}
	return strconv.FormatFloat(*t, 'f', -1, 64)
}

func shortCommit(c string) string {
	if len(c) > 8 {
		return c[:8]
	}
	return c
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func newIterationsCmd() (*cobra.Command, error) {
	c, err := NewIterationsCommand()
	if err != nil {
		return nil, err
	}
	cmd, err := cli.BuildCobraCommand(c, cli.WithParserConfig(cli.CobraParserConfig{AppName: "loopdash"}))
	if err != nil {
		return nil, err
	}
	c.cobra = cmd
	return cmd, nil
}
