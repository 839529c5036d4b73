package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"cleanflow/internal/app"
	"cleanflow/internal/config"
	"cleanflow/internal/db"
	"cleanflow/internal/domain"
	"cleanflow/internal/engine"
	"cleanflow/internal/engine/access"
	"cleanflow/internal/feed"
	"cleanflow/internal/notify"
	"cleanflow/internal/repo"
	"cleanflow/internal/server"
	"cleanflow/internal/tracker"
)

var rootCmd = &cobra.Command{
	Use:   "cleanflow",
	Short: "CleanFlow CLI",
	Long: `CleanFlow coordinates waste collection: residents book pickups and report
illegal dumping, administrators assign collectors, collectors advance the
work and stream their position. Items flow pending -> assigned ->
in_progress -> completed (bookings) or cleared (reports); reports can also
be rejected by an administrator.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("CLEANFLOW")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "", "account id to act as (defaults to the seeded admin)")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor-id", rootCmd.PersistentFlags().Lookup("actor-id"))
}

func registerCommands() {
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(residentCmd())
	rootCmd.AddCommand(collectorCmd())
	rootCmd.AddCommand(itemCmd())
	rootCmd.AddCommand(tokenCmd())
	rootCmd.AddCommand(logCmd())
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	var devLogin bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server and change feed",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			cfg, err := config.Load(workspace)
			if err != nil {
				return err
			}
			if secret := os.Getenv("CLEANFLOW_AUTH_JWT_SECRET"); secret != "" {
				cfg.Auth.JWTSecret = secret
			}
			conn, err := app.Open(cmd.Context(), workspace, cfg)
			if err != nil {
				return err
			}
			defer conn.Close()

			f, err := feed.Start(feed.Config{Port: cfg.Feed.Port})
			if err != nil {
				return err
			}
			defer f.Shutdown()
			notifier, err := notify.NewNotifier(f.Conn())
			if err != nil {
				return err
			}
			defer notifier.Close()

			e := engine.New(conn, f)
			t := tracker.Tracker{Repo: e.Repo, Feed: f}
			if addr == "" {
				addr = cfg.Server.Addr
			}
			if basePath == "" {
				basePath = cfg.Server.BasePath
			}
			handler, err := server.New(server.Config{
				Engine:   e,
				Tracker:  t,
				Notifier: notifier,
				BasePath: basePath,
				Auth: server.AuthConfig{
					JWTSecret: cfg.Auth.JWTSecret,
					TokenTTL:  cfg.TokenTTL(),
					DevLogin:  devLogin,
				},
			})
			if err != nil {
				return err
			}
			server.StartWebhookDispatcher(cmd.Context(), e, cfg.Webhooks)

			srv := &http.Server{Addr: addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			fmt.Printf("Serving CleanFlow API on http://%s%s (OpenAPI at %s/openapi.json, stream at %s/stream)\n", addr, basePath, basePath, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config)")
	cmd.Flags().StringVar(&basePath, "base-path", "", "API base path (overrides config)")
	cmd.Flags().BoolVar(&devLogin, "dev-login", false, "enable passwordless dev login endpoint")
	return cmd
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{Use: "config", Short: "Manage configuration"}
	cfg.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write a default cleanflow.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			fmt.Println("Wrote", path)
			return nil
		},
	})
	cfg.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			return printJSON(cfg)
		},
	})
	return cfg
}

func residentCmd() *cobra.Command {
	res := &cobra.Command{Use: "resident", Short: "Manage resident accounts"}
	res.AddCommand(residentListCmd())
	res.AddCommand(residentApproveCmd())
	res.AddCommand(residentDeleteCmd())
	return res
}

func residentListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List residents",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, _ access.Identity) error {
				items, err := e.Repo.ListProfilesByRole(ctx, domain.RoleResident)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				t := newTable("ID", "NAME", "EMAIL", "APPROVED", "CREATED")
				for _, p := range items {
					t.AppendRow(table.Row{p.ID, p.FullName, p.Email, p.IsApproved, p.CreatedAt})
				}
				fmt.Println(t.Render())
				return nil
			})
		},
	}
	return cmd
}

func residentApproveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "approve <id>",
		Short: "Approve a resident",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, ident access.Identity) error {
				p, err := e.ApproveResident(ctx, ident, args[0])
				if err != nil {
					return err
				}
				return printJSON(p)
			})
		},
	}
	return cmd
}

func residentDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a resident account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, ident access.Identity) error {
				return e.DeleteResident(ctx, ident, args[0])
			})
		},
	}
	return cmd
}

func collectorCmd() *cobra.Command {
	col := &cobra.Command{Use: "collector", Short: "Manage collectors"}
	col.AddCommand(collectorCreateCmd())
	col.AddCommand(collectorListCmd())
	return col
}

func collectorCreateCmd() *cobra.Command {
	var opts engine.CollectorCreateOptions
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a collector account",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, ident access.Identity) error {
				c, err := e.CreateCollector(ctx, ident, opts)
				if err != nil {
					return err
				}
				return printJSON(c)
			})
		},
	}
	cmd.Flags().StringVar(&opts.FullName, "name", "", "full name")
	cmd.Flags().StringVar(&opts.Email, "email", "", "email address")
	cmd.Flags().StringVar(&opts.Phone, "phone", "", "phone number")
	cmd.Flags().StringVar(&opts.VehicleNumber, "vehicle-number", "", "vehicle registration")
	cmd.Flags().StringVar(&opts.VehicleType, "vehicle-type", "", "vehicle type")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("vehicle-number")
	return cmd
}

func collectorListCmd() *cobra.Command {
	var located, available bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List collectors",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, _ access.Identity) error {
				items, err := e.Repo.ListCollectors(ctx, repo.CollectorFilters{OnlyLocated: located, OnlyAvailable: available})
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				t := newTable("ID", "VEHICLE", "TYPE", "AVAILABLE", "LAST SEEN")
				for _, c := range items {
					lastSeen := ""
					if c.LastLocationUpdate != nil {
						lastSeen = *c.LastLocationUpdate
					}
					t.AppendRow(table.Row{c.ID, c.VehicleNumber, c.VehicleType, c.IsAvailable, lastSeen})
				}
				fmt.Println(t.Render())
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&located, "located", false, "only collectors with a known position")
	cmd.Flags().BoolVar(&available, "available", false, "only available collectors")
	return cmd
}

func itemCmd() *cobra.Command {
	item := &cobra.Command{
		Use:   "item",
		Short: "Manage work items (bookings and reports)",
	}
	item.AddCommand(itemBookCmd())
	item.AddCommand(itemReportCmd())
	item.AddCommand(itemListCmd())
	item.AddCommand(itemAssignCmd())
	item.AddCommand(itemStatusCmd())
	return item
}

func itemBookCmd() *cobra.Command {
	var opts engine.WorkItemCreateOptions
	cmd := &cobra.Command{
		Use:   "book",
		Short: "Book a pickup (acting account must be a resident)",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Kind = domain.KindBooking
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, ident access.Identity) error {
				w, err := e.CreateWorkItem(ctx, ident, opts)
				if err != nil {
					return err
				}
				return printJSON(w)
			})
		},
	}
	cmd.Flags().StringVar(&opts.Address, "address", "", "pickup address")
	cmd.Flags().Float64Var(&opts.Lat, "lat", 0, "latitude")
	cmd.Flags().Float64Var(&opts.Lng, "lng", 0, "longitude")
	cmd.Flags().StringVar(&opts.Details, "details", "", "optional notes")
	_ = cmd.MarkFlagRequired("address")
	_ = cmd.MarkFlagRequired("lat")
	_ = cmd.MarkFlagRequired("lng")
	return cmd
}

func itemReportCmd() *cobra.Command {
	var opts engine.WorkItemCreateOptions
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Report illegal dumping (acting account must be a resident)",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Kind = domain.KindReport
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, ident access.Identity) error {
				w, err := e.CreateWorkItem(ctx, ident, opts)
				if err != nil {
					return err
				}
				return printJSON(w)
			})
		},
	}
	cmd.Flags().StringVar(&opts.Address, "address", "", "site address")
	cmd.Flags().Float64Var(&opts.Lat, "lat", 0, "latitude")
	cmd.Flags().Float64Var(&opts.Lng, "lng", 0, "longitude")
	cmd.Flags().StringVar(&opts.Details, "details", "", "what was dumped")
	_ = cmd.MarkFlagRequired("address")
	_ = cmd.MarkFlagRequired("lat")
	_ = cmd.MarkFlagRequired("lng")
	_ = cmd.MarkFlagRequired("details")
	return cmd
}

func itemListCmd() *cobra.Command {
	var kind, status string
	var active bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List work items",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, _ access.Identity) error {
				items, err := e.Repo.ListWorkItems(ctx, repo.WorkItemFilters{
					Kind:            domain.Kind(kind),
					Status:          domain.Status(status),
					ExcludeTerminal: active,
				})
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				t := newTable("ID", "KIND", "STATUS", "ADDRESS", "COLLECTOR", "REQUESTED")
				for _, w := range items {
					collector := ""
					if w.CollectorID != nil {
						collector = *w.CollectorID
					}
					t.AppendRow(table.Row{w.ID, w.Kind, w.Status, w.Address, collector, w.RequestedAt})
				}
				fmt.Println(t.Render())
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "", "booking or report")
	cmd.Flags().StringVar(&status, "status", "", "status filter")
	cmd.Flags().BoolVar(&active, "active", false, "exclude terminal items")
	return cmd
}

func itemAssignCmd() *cobra.Command {
	var collectorID string
	cmd := &cobra.Command{
		Use:   "assign <id>",
		Short: "Assign a pending work item to a collector",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, ident access.Identity) error {
				w, err := e.Assign(ctx, ident, args[0], collectorID)
				if err != nil {
					return err
				}
				return printJSON(w)
			})
		},
	}
	cmd.Flags().StringVar(&collectorID, "collector", "", "collector id")
	_ = cmd.MarkFlagRequired("collector")
	return cmd
}

func itemStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status <id> <status>",
		Short: "Advance a work item's lifecycle",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, ident access.Identity) error {
				w, err := e.Transition(ctx, ident, args[0], domain.Status(args[1]))
				if err != nil {
					return err
				}
				return printJSON(w)
			})
		},
	}
	return cmd
}

func tokenCmd() *cobra.Command {
	var accountID string
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for an account",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			if secret := os.Getenv("CLEANFLOW_AUTH_JWT_SECRET"); secret != "" {
				cfg.Auth.JWTSecret = secret
			}
			if accountID == "" {
				return fmt.Errorf("--account required")
			}
			token, err := server.MintToken(cfg.Auth.JWTSecret, accountID, ttl)
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}
	cmd.Flags().StringVar(&accountID, "account", "", "account id (token subject)")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}

func logCmd() *cobra.Command {
	lg := &cobra.Command{Use: "log", Short: "Inspect the event log"}
	var cursor int64
	var n int
	tail := &cobra.Command{
		Use:   "tail",
		Short: "Show events after a cursor",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, _ access.Identity) error {
				events, err := e.Repo.EventsAfter(ctx, n, cursor)
				if err != nil {
					return err
				}
				return printJSON(events)
			})
		},
	}
	tail.Flags().Int64Var(&cursor, "cursor", 0, "start after this event id")
	tail.Flags().IntVar(&n, "n", 20, "number of events")
	lg.AddCommand(tail)
	return lg
}

// --- helpers ---

// withEngine opens the workspace and resolves the acting identity. With no
// --actor-id the seeded admin acts, which is what local operation wants.
func withEngine(ctx context.Context, fn func(context.Context, engine.Engine, access.Identity) error) error {
	workspace := viper.GetString("workspace")
	cfg, err := config.Load(workspace)
	if err != nil {
		return err
	}
	conn, err := app.Open(ctx, workspace, cfg)
	if err != nil {
		return err
	}
	defer conn.Close()
	e := engine.New(conn, nil)
	actorID := viper.GetString("actor-id")
	if actorID == "" {
		admin, err := e.Repo.GetProfileByEmail(ctx, cfg.Admin.Email)
		if err != nil {
			return fmt.Errorf("resolve admin account: %w", err)
		}
		actorID = admin.ID
	}
	ident, err := e.Gate.Authorize(ctx, actorID)
	if err != nil {
		return err
	}
	return fn(ctx, e, ident)
}

func newTable(headers ...any) table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row(headers))
	return t
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
