package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/conorfennell/ripen/internal/app"
	"github.com/conorfennell/ripen/internal/config"
	"github.com/conorfennell/ripen/internal/sync"
	"github.com/conorfennell/ripen/internal/web"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

type cli struct {
	cfg    *config.Config
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:          "ripen",
		Short:        "Spaced-repetition flashcards that learn your forgetting curve",
		Version:      app.Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cmd.Flags())
			if err != nil {
				return err
			}
			c.cfg = cfg
			c.logger = cfg.Logger(cmd.ErrOrStderr())
			slog.SetDefault(c.logger)
			return nil
		},
	}
	config.RegisterFlags(root.PersistentFlags())

	root.AddCommand(
		c.reviewCmd(),
		c.statusCmd(),
		c.analyzeCmd(),
		c.importCmd(),
		c.sourceCmd(),
		c.syncCmd(),
		c.flatCmd(),
		c.serveCmd(),
	)
	return root
}

// withApp opens the collection for the duration of fn.
func (c *cli) withApp(cmd *cobra.Command, fn func(*app.App) error) error {
	a, err := app.Open(cmd.Context(), c.cfg, c.logger)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

func (c *cli) reviewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "review",
		Short: "Review the cards that are due",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(a *app.App) error {
				return runReview(cmd.Context(), a, cmd.InOrStdin(), cmd.OutOrStdout())
			})
		},
	}
}

func (c *cli) statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show how many cards are due",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(a *app.App) error {
				printStatus(cmd.OutOrStdout(), a.Status())
				return nil
			})
		},
	}
}

func (c *cli) analyzeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "analyze",
		Short: "Recompute recommended intervals and print the analysis",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(a *app.App) error {
				return a.Analyze(cmd.Context(), cmd.OutOrStdout())
			})
		},
	}
}

func (c *cli) importCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE...",
		Short: "Add the cards of markdown files to the collection",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(a *app.App) error {
				report, err := a.Import(cmd.Context(), args...)
				printReport(cmd.OutOrStdout(), report)
				return err
			})
		},
	}
}

func (c *cli) sourceCmd() *cobra.Command {
	source := &cobra.Command{
		Use:   "source",
		Short: "Manage the directories and git repositories cards are synced from",
	}
	source.AddCommand(
		&cobra.Command{
			Use:   "add PATH|URL",
			Short: "Register a card source",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return c.withApp(cmd, func(a *app.App) error {
					s, err := a.AddSource(cmd.Context(), args[0])
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Added %s source %d: %s\n", s.Type, s.ID, s.Path)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "list",
			Short: "List the card sources",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return c.withApp(cmd, func(a *app.App) error {
					sources, err := a.DB.GetAllSources(cmd.Context())
					if err != nil {
						return err
					}
					out := cmd.OutOrStdout()
					for _, s := range sources {
						scanned := "never"
						if s.LastScanned.Valid {
							scanned = s.LastScanned.Time.Local().Format(time.DateTime)
						}
						fmt.Fprintf(out, "%d\t%s\t%s\t%s\n", s.ID, s.Type, s.Path, scanned)
					}
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "remove ID",
			Short: "Forget a card source; its cards stay in the collection",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := strconv.ParseInt(args[0], 10, 64)
				if err != nil {
					return fmt.Errorf("invalid source ID %q", args[0])
				}
				return c.withApp(cmd, func(a *app.App) error {
					return a.DB.DeleteSource(cmd.Context(), id)
				})
			},
		},
	)
	return source
}

func (c *cli) syncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Pull every source and reconcile its cards into the collection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(a *app.App) error {
				a.Syncer.WithProgress(cmd.ErrOrStderr())
				report, err := a.Sync(cmd.Context())
				printReport(cmd.OutOrStdout(), report)
				return err
			})
		},
	}
}

func (c *cli) flatCmd() *cobra.Command {
	flat := &cobra.Command{
		Use:   "flat",
		Short: "Exchange the collection as tab-separated text files",
	}
	flat.AddCommand(
		&cobra.Command{
			Use:   "import FILE.txt",
			Short: "Replace the collection with FILE.txt and its _reps and _settings files",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return c.withApp(cmd, func(a *app.App) error {
					if err := a.ImportFlat(cmd.Context(), args[0]); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Loaded %d cards from %s\n", a.Entries.Len(), args[0])
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "export FILE.txt",
			Short: "Write the collection to FILE.txt and its _reps and _settings files",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return c.withApp(cmd, func(a *app.App) error {
					return a.ExportFlat(args[0])
				})
			},
		},
	)
	return flat
}

func (c *cli) serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the review web interface",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(a *app.App) error {
				handler, err := web.NewServer(a, c.logger)
				if err != nil {
					return err
				}
				srv := &http.Server{
					Addr:              c.cfg.Addr,
					Handler:           handler,
					ReadHeaderTimeout: 5 * time.Second,
				}

				errc := make(chan error, 1)
				go func() {
					c.logger.Info("web interface listening", "addr", "http://"+c.cfg.Addr)
					errc <- srv.ListenAndServe()
				}()

				select {
				case err := <-errc:
					return err
				case <-cmd.Context().Done():
				}
				c.logger.Info("shutting down")
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
		},
	}
}

func printReport(w io.Writer, r sync.Report) {
	fmt.Fprintf(w, "Found %d cards: %d added, %d merged, %d unchanged, %d removed, %d errors.\n",
		r.Parsed, r.Added, r.Merged, r.Ignored, r.Removed, len(r.Errors))
	if len(r.Errors) > 0 {
		fmt.Fprintln(w, "\nErrors:")
		for _, e := range r.Errors {
			fmt.Fprintf(w, "- %s\n", e)
		}
	}
}
