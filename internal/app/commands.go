package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"apimapper/internal/config"
	"apimapper/internal/mapping"
	"apimapper/internal/panel"
	"apimapper/internal/server"
	"apimapper/internal/state"
)

// stateFlags are the live table state given on the command line.
type stateFlags struct {
	page        int
	size        int
	sort        string
	filter      string
	submit      bool
	composerURL string
}

func (f *stateFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&f.page, "page", 1, "current page (1-based)")
	cmd.Flags().IntVar(&f.size, "size", panel.DefaultPageSize, "page size")
	cmd.Flags().StringVar(&f.sort, "sort", "", "sorted column as field:ascend|descend")
	cmd.Flags().StringVar(&f.filter, "filter", "", "filter expression as JSON")
	cmd.Flags().BoolVar(&f.submit, "submit", false, "compose the filter into the request before sending")
	cmd.Flags().StringVar(&f.composerURL, "composer-url", "", "compose filters through a remote apimapper server")
}

func (a *AppRunner) newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "apimapper",
		Short: "Map table state onto third-party API requests",
		Long: `apimapper turns table state (pagination, sort, filter) into concrete
request parameters for an arbitrary REST API and normalizes the responses
back into rows and pagination.

Examples:
  apimapper run users --page 2 --size 20 --sort age:descend
  apimapper conditions users --filter '{"field":"status","op":"eq","value":"active"}'
  apimapper serve --addr 127.0.0.1:8089`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	root.PersistentFlags().String(keyConfig, defaultConfigFile, "YAML configuration file")
	root.PersistentFlags().String(keyLogLevel, "info", "Logging level (none, error, warn, info, debug)")
	root.PersistentFlags().String(keyStoreDir, "", "template store directory (default from config)")

	a.settings = newSettings(root)
	root.PersistentPreRun = func(*cobra.Command, []string) {
		a.setupLogging()
	}

	root.AddCommand(
		a.newRunCommand(),
		a.newPreviewCommand(),
		a.newConditionsCommand(),
		a.newServeCommand(),
		a.newTemplateCommand(),
	)
	return root
}

func exactlyOneArg(cmd *cobra.Command, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: %s needs exactly one argument", ErrMissingArgs, cmd.Name())
	}
	return nil
}

func (a *AppRunner) newRunCommand() *cobra.Command {
	var flags stateFlags
	cmd := &cobra.Command{
		Use:   "run <request>",
		Short: "Execute one page of a request and print the normalized result",
		Args:  exactlyOneArg,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, rc, err := a.requestConfig(args[0])
			if err != nil {
				return err
			}
			sender, err := a.senderFactory.New(cfg)
			if err != nil {
				return err
			}
			p, err := a.newPanel(cmd.Context(), rc, flags, panel.WithSender(sender))
			if err != nil {
				return err
			}
			res, err := p.Execute(cmd.Context())
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), res)
		},
	}
	flags.register(cmd)
	return cmd
}

func (a *AppRunner) newPreviewCommand() *cobra.Command {
	var flags stateFlags
	cmd := &cobra.Command{
		Use:   "preview <request>",
		Short: "Print the request that run would send",
		Args:  exactlyOneArg,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, rc, err := a.requestConfig(args[0])
			if err != nil {
				return err
			}
			p, err := a.newPanel(cmd.Context(), rc, flags)
			if err != nil {
				return err
			}
			desc, warnings := p.Compose()
			if warnings == nil {
				warnings = []string{}
			}
			return writeJSON(cmd.OutOrStdout(), server.PreviewResponse{
				Request:  desc,
				Config:   p.Snapshot().Config,
				Warnings: warnings,
			})
		},
	}
	flags.register(cmd)
	return cmd
}

func (a *AppRunner) newConditionsCommand() *cobra.Command {
	var flags stateFlags
	cmd := &cobra.Command{
		Use:   "conditions <request>",
		Short: "Print the filter payload composed for a request",
		Args:  exactlyOneArg,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, rc, err := a.requestConfig(args[0])
			if err != nil {
				return err
			}
			expr, err := state.ParseFilter(flags.filter)
			if err != nil {
				return fmt.Errorf("%w: %v", ErrUsage, err)
			}
			req := mapping.NewFilterRequest(rc.Filter, rc.Variables, expr,
				state.Pagination{Current: flags.page, PageSize: flags.size})
			sub, err := filterComposer(flags).ComposeFilter(cmd.Context(), req)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), sub)
		},
	}
	flags.register(cmd)
	return cmd
}

func (a *AppRunner) newServeCommand() *cobra.Command {
	var origins []string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the filter, preview and template API over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := a.openStore()
			if err != nil {
				return err
			}
			addr := a.settings.GetString(keyAddr)
			if addr == "" {
				if cfg, err := a.loadConfig(); err == nil {
					addr = cfg.Server.Addr
				}
			}
			if addr == "" {
				addr = "127.0.0.1:8089"
			}

			var opts []server.Option
			if len(origins) > 0 {
				opts = append(opts, server.WithCORSOrigins(origins))
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return server.New(st, opts...).ListenAndServe(ctx, addr)
		},
	}
	cmd.Flags().String(keyAddr, "", "listen address (default from config)")
	cmd.Flags().StringSliceVar(&origins, "cors-origin", nil, "allowed CORS origins (default all)")
	_ = a.settings.BindPFlag(keyAddr, cmd.Flags().Lookup(keyAddr))
	return cmd
}

func (a *AppRunner) newTemplateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "template",
		Short: "Manage saved data-source templates",
	}

	var (
		fetch bool
		flags stateFlags
	)
	save := &cobra.Command{
		Use:   "save <request> <name>",
		Short: "Save a request as a named template",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 2 {
				return fmt.Errorf("%w: save needs a request name and a template name", ErrMissingArgs)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, rc, err := a.requestConfig(args[0])
			if err != nil {
				return err
			}
			st, err := a.openStore()
			if err != nil {
				return err
			}
			var opts []panel.Option
			if fetch {
				sender, err := a.senderFactory.New(cfg)
				if err != nil {
					return err
				}
				opts = append(opts, panel.WithSender(sender))
			}
			p, err := a.newPanel(cmd.Context(), rc, flags, opts...)
			if err != nil {
				return err
			}
			var rows []interface{}
			if fetch {
				res, err := p.Execute(cmd.Context())
				if err != nil {
					return err
				}
				rows = res.Rows
			}
			tpl, err := p.SaveAs(st, args[1], rows)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), tpl)
		},
	}
	save.Flags().BoolVar(&fetch, "fetch", false, "execute the request once to infer fields")
	flags.register(save)

	list := &cobra.Command{
		Use:   "list",
		Short: "List saved templates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := a.openStore()
			if err != nil {
				return err
			}
			tpls, err := st.List()
			if err != nil {
				return err
			}
			return writeTemplateTable(cmd.OutOrStdout(), tpls)
		},
	}

	show := &cobra.Command{
		Use:   "show <id>",
		Short: "Print a saved template",
		Args:  exactlyOneArg,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.openStore()
			if err != nil {
				return err
			}
			tpl, err := st.Get(args[0])
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), tpl)
		},
	}

	del := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a saved template",
		Args:  exactlyOneArg,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.openStore()
			if err != nil {
				return err
			}
			if err := st.Delete(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		},
	}

	cmd.AddCommand(save, list, show, del)
	return cmd
}

// newPanel builds a panel from a request and the state flags, submitting the
// filter when asked.
func (a *AppRunner) newPanel(ctx context.Context, rc config.RequestConfig, flags stateFlags, opts ...panel.Option) (*panel.Panel, error) {
	srt, err := parseSort(flags.sort)
	if err != nil {
		return nil, err
	}
	expr, err := state.ParseFilter(flags.filter)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUsage, err)
	}

	opts = append(opts,
		panel.WithPagination(state.Pagination{Current: flags.page, PageSize: flags.size}),
		panel.WithFilterComposer(filterComposer(flags)),
	)
	p := panel.New(rc, opts...)
	p.SetSort(srt)
	p.SetFilter(expr)

	if flags.submit {
		if _, err := p.SubmitConditions(ctx); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func filterComposer(flags stateFlags) mapping.FilterComposer {
	if flags.composerURL != "" {
		return server.NewRemoteComposer(flags.composerURL, nil)
	}
	return mapping.LocalComposer{}
}

// parseSort reads "field:ascend|descend". asc and desc are accepted too.
func parseSort(raw string) (*state.Sort, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	idx := strings.LastIndex(raw, ":")
	if idx <= 0 || idx == len(raw)-1 {
		return nil, fmt.Errorf("%w: invalid --sort '%s', expected field:ascend|descend", ErrUsage, raw)
	}
	field, order := raw[:idx], strings.ToLower(raw[idx+1:])
	switch order {
	case state.Ascend, "asc":
		order = state.Ascend
	case state.Descend, "desc":
		order = state.Descend
	default:
		return nil, fmt.Errorf("%w: invalid sort order '%s', expected ascend or descend", ErrUsage, order)
	}
	return &state.Sort{Field: field, Order: order}, nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeTemplateTable(w io.Writer, tpls []config.DataSourceTemplate) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tCREATED\tFIELDS")
	for _, t := range tpls {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", t.ID, t.Name, t.CreatedAt.Format(time.RFC3339), len(t.Fields))
	}
	return tw.Flush()
}
