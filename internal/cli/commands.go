package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"ttclub/internal/backend"
	"ttclub/internal/core"
	"ttclub/internal/ledger"
	"ttclub/internal/log"
)

// Opener opens the configured backend for one command.
type Opener func(ctx context.Context) (*backend.BackendResult, error)

// ConfigOpener opens the backend described by the environment.
func ConfigOpener(logger *log.Logger) Opener {
	return func(ctx context.Context) (*backend.BackendResult, error) {
		cfg, err := LoadConfig()
		if err != nil {
			return nil, err
		}
		bcfg, err := backend.FromAppConfig(cfg)
		if err != nil {
			return nil, err
		}
		return backend.NewFactory(logger).CreateBackend(ctx, bcfg)
	}
}

type commands struct {
	open Opener
}

// NewRootCommand builds the ttclubctl command tree. A nil open reads the
// backend from the environment after --env-file is applied.
func NewRootCommand(open Opener) *cobra.Command {
	c := &commands{open: open}
	var envFile, logLevel string
	root := &cobra.Command{
		Use:           "ttclubctl",
		Short:         "Administer the table tennis club ledger",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if c.open != nil {
				return nil
			}
			if envFile == "" {
				_ = LoadEnvFile()
			} else if err := LoadEnvFile(envFile); err != nil {
				return err
			}
			logger := log.New(log.Config{
				Level:     log.ParseLevel(logLevel),
				Component: log.ComponentCLI,
				Output:    cmd.ErrOrStderr(),
			})
			c.open = ConfigOpener(logger)
			return nil
		},
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", "", "load environment overrides from this file")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level for backend messages")
	root.AddCommand(
		c.exportCommand(),
		c.importCommand(),
		c.summaryCommand(),
		c.feeYearCommand(),
		c.snapshotsCommand(),
	)
	return root
}

// withBackend opens the backend, runs fn and always releases it.
func (c *commands) withBackend(cmd *cobra.Command, fn func(*backend.BackendResult) error) (err error) {
	res, err := c.open(cmd.Context())
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	defer func() {
		if cerr := res.Cleanup(); cerr != nil && err == nil {
			err = fmt.Errorf("close ledger: %w", cerr)
		}
	}()
	return fn(res)
}

func (c *commands) exportCommand() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:       "export json|members|transactions",
		Short:     "Write the ledger as JSON or a CSV table",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"json", "members", "transactions"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withBackend(cmd, func(res *backend.BackendResult) error {
				snap, _ := res.Service.Export()
				return writeOutput(cmd.OutOrStdout(), output, func(w io.Writer) error {
					switch args[0] {
					case "members":
						return ledger.WriteTable(w, ledger.MemberTable(snap))
					case "transactions":
						return ledger.WriteTable(w, ledger.TransactionTable(snap))
					default:
						enc := json.NewEncoder(w)
						enc.SetIndent("", "  ")
						return enc.Encode(snap)
					}
				})
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to this file instead of stdout")
	return cmd
}

func writeOutput(stdout io.Writer, path string, write func(io.Writer) error) error {
	if path == "" {
		return write(stdout)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (c *commands) importCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Replace the ledger with an exported JSON document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}
			return c.withBackend(cmd, func(res *backend.BackendResult) error {
				if err := res.Service.Import(cmd.Context(), data); err != nil {
					return err
				}
				snap, rev := res.Service.Export()
				fmt.Fprintf(cmd.OutOrStdout(), "Imported %d members and %d transactions (revision %d)\n",
					len(snap.Members), len(snap.Transactions), rev)
				return nil
			})
		},
	}
}

func (c *commands) summaryCommand() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Print the dashboard and fee collection per year",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withBackend(cmd, func(res *backend.BackendResult) error {
				dash := res.Service.Dashboard()
				fees := res.Service.FeeSummary()
				if asJSON {
					enc := json.NewEncoder(cmd.OutOrStdout())
					enc.SetIndent("", "  ")
					return enc.Encode(struct {
						Dashboard core.Dashboard        `json:"dashboard"`
						FeeYears  []core.FeeYearSummary `json:"feeYears"`
					}{dash, fees})
				}
				return printSummary(cmd.OutOrStdout(), dash, fees)
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}

func printSummary(out io.Writer, dash core.Dashboard, fees []core.FeeYearSummary) error {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Members\t%d (%d active)\n", dash.TotalMembers, dash.ActiveMembers)
	fmt.Fprintf(tw, "Collected\t%s\n", dash.TotalCollected)
	fmt.Fprintf(tw, "Contributions\t%s\n", dash.TotalContributions)
	fmt.Fprintf(tw, "Expenses\t%s\n", dash.TotalExpenses)
	fmt.Fprintf(tw, "Net balance\t%s\n", dash.NetBalance)
	fmt.Fprintf(tw, "Pending\t%d payments, %s\n", dash.PendingPayments, dash.PendingAmount)
	fmt.Fprintln(tw)
	fmt.Fprintln(tw, "YEAR\tAMOUNT\tACTIVE\tPAID\tCOLLECTED\tPENDING")
	for _, fy := range fees {
		fmt.Fprintf(tw, "%d\t%s\t%t\t%d\t%s\t%d (%s)\n",
			fy.Year, fy.Amount, fy.IsActive, fy.PaidCount, fy.Collected, fy.PendingCount, fy.PendingAmount)
	}
	return tw.Flush()
}

func (c *commands) feeYearCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fee-year",
		Short: "Manage the annual fee schedule",
	}

	var description string
	add := &cobra.Command{
		Use:   "add <year> <amount>",
		Short: "Add a fee year; every member gets an unpaid entry",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			year, amount, err := parseYearAmount(args)
			if err != nil {
				return err
			}
			return c.withBackend(cmd, func(res *backend.BackendResult) error {
				fy, err := res.Service.AddFeeYear(cmd.Context(), year, amount, description)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added fee year %d at %s\n", fy.Year, fy.Amount)
				return nil
			})
		},
	}
	add.Flags().StringVarP(&description, "description", "d", "", "label shown on invoices")

	var updateDescription string
	update := &cobra.Command{
		Use:   "update <year> <amount>",
		Short: "Change a fee year's amount or description",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			year, amount, err := parseYearAmount(args)
			if err != nil {
				return err
			}
			return c.withBackend(cmd, func(res *backend.BackendResult) error {
				fy, err := res.Service.UpdateFeeYear(cmd.Context(), year, amount, updateDescription)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Updated fee year %d to %s\n", fy.Year, fy.Amount)
				return nil
			})
		},
	}
	update.Flags().StringVarP(&updateDescription, "description", "d", "", "new label; empty keeps the current one")

	toggle := &cobra.Command{
		Use:   "toggle <year>",
		Short: "Activate or deactivate a fee year",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			year, err := parseYear(args[0])
			if err != nil {
				return err
			}
			return c.withBackend(cmd, func(res *backend.BackendResult) error {
				fy, err := res.Service.ToggleFeeYear(cmd.Context(), year)
				if err != nil {
					return err
				}
				state := "inactive"
				if fy.IsActive {
					state = "active"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Fee year %d is now %s\n", fy.Year, state)
				return nil
			})
		},
	}

	var force bool
	del := &cobra.Command{
		Use:   "delete <year>",
		Short: "Delete a fee year and its transactions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			year, err := parseYear(args[0])
			if err != nil {
				return err
			}
			return c.withBackend(cmd, func(res *backend.BackendResult) error {
				removed, err := res.Service.DeleteFeeYear(cmd.Context(), year, force)
				if errors.Is(err, core.ErrFeeYearHasPayments) {
					return fmt.Errorf("%w (rerun with --force to delete anyway)", err)
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted fee year %d and %d transaction(s)\n", year, removed)
				return nil
			})
		},
	}
	del.Flags().BoolVar(&force, "force", false, "delete even when members have paid")

	list := &cobra.Command{
		Use:   "list",
		Short: "List fee years",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withBackend(cmd, func(res *backend.BackendResult) error {
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "YEAR\tAMOUNT\tACTIVE\tDESCRIPTION")
				for _, fy := range res.Service.FeeYears() {
					fmt.Fprintf(tw, "%d\t%s\t%t\t%s\n", fy.Year, fy.Amount, fy.IsActive, fy.Description)
				}
				return tw.Flush()
			})
		},
	}

	cmd.AddCommand(add, update, toggle, del, list)
	return cmd
}

func parseYear(s string) (int, error) {
	year, err := strconv.Atoi(s)
	if err != nil || year <= 0 {
		return 0, fmt.Errorf("%w: %q", core.ErrInvalidYear, s)
	}
	return year, nil
}

func parseYearAmount(args []string) (int, core.Money, error) {
	year, err := parseYear(args[0])
	if err != nil {
		return 0, core.Money{}, err
	}
	amount, err := core.ParseAmount(args[1])
	if err != nil {
		return 0, core.Money{}, err
	}
	return year, amount, nil
}

func (c *commands) snapshotsCommand() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "snapshots",
		Short: "List stored ledger snapshots (sqlite backend)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withBackend(cmd, func(res *backend.BackendResult) error {
				if res.History == nil {
					return errors.New("snapshot history is only kept by the sqlite backend")
				}
				infos, err := res.History.ListSnapshots(cmd.Context(), limit)
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tSAVED AT\tVERSION\tMEMBERS\tTRANSACTIONS")
				for _, info := range infos {
					fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%d\n",
						info.ID, info.SavedAt.Format("2006-01-02 15:04:05"), info.Version, info.Members, info.Transactions)
				}
				return tw.Flush()
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of snapshots to show")
	return cmd
}
