/*
ledgerctl - Command-line access to the ledger book

PURPOSE:
  Operator tooling for the queries a human actually asks day to day:
  current balance, what is still unpaid, what needs classification, and
  what looks duplicated - plus applying a change-request payload from a
  JSON file. Works directly against the SQLite document, no server
  required.

USAGE:
  ledgerctl balance
  ledgerctl outstanding
  ledgerctl unknown
  ledgerctl duplicates
  ledgerctl apply changes.json
*/
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/meridian/agent-ledger/engine"
	"github.com/meridian/agent-ledger/internal/logger"
	"github.com/meridian/agent-ledger/ledger"
	"github.com/meridian/agent-ledger/store/sqlite"
)

var dbPath string

var rootCmd = &cobra.Command{
	Use:           "ledgerctl",
	Short:         "Query and mutate the agent payment ledger",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "warning: could not load .env: %v\n", err)
	}

	defaultDB := os.Getenv("LEDGER_DB")
	if defaultDB == "" {
		defaultDB = "ledger.db"
	}
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", defaultDB, "SQLite database path")

	rootCmd.AddCommand(balanceCmd, outstandingCmd, unknownCmd, duplicatesCmd, applyCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func loadBook(ctx context.Context) (*ledger.Book, func(), error) {
	store, err := sqlite.New(dbPath)
	if err != nil {
		return nil, nil, err
	}
	book, err := store.Load(ctx)
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	return book, func() { store.Close() }, nil
}

var balanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "Show the current running balance in USD",
	RunE: func(cmd *cobra.Command, args []string) error {
		book, done, err := loadBook(cmd.Context())
		if err != nil {
			return err
		}
		defer done()
		fmt.Printf("%s USD (%d rows)\n", book.CurrentBalance(), len(book.Transactions))
		return nil
	},
}

var outstandingCmd = &cobra.Command{
	Use:   "outstanding",
	Short: "List unpaid invoices with their USD total",
	RunE: func(cmd *cobra.Command, args []string) error {
		book, done, err := loadBook(cmd.Context())
		if err != nil {
			return err
		}
		defer done()

		summary := book.OutstandingInvoices()
		for _, inv := range summary.Invoices {
			amount := inv.Amount.String() + " " + inv.Currency
			if inv.AmountTBC {
				amount = "TBC"
			}
			fmt.Printf("%-16s %-28s %12s  %s\n", inv.InvoiceNo, inv.Payee, amount, inv.Status)
		}
		fmt.Printf("total: %s USD", summary.TotalUSD)
		if summary.AmountUnknown > 0 {
			fmt.Printf(" (+%d invoices with unknown amount)", summary.AmountUnknown)
		}
		fmt.Println()
		return nil
	},
}

var unknownCmd = &cobra.Command{
	Use:   "unknown",
	Short: "List transactions of unknown kind needing classification",
	RunE: func(cmd *cobra.Command, args []string) error {
		book, done, err := loadBook(cmd.Context())
		if err != nil {
			return err
		}
		defer done()

		for i, tx := range book.Transactions {
			if tx.Kind != ledger.KindUnknown {
				continue
			}
			fmt.Printf("row %d: %s %s %s  %q\n", i, tx.Date, tx.Amount, tx.Currency, tx.Description)
		}
		return nil
	},
}

var duplicatesCmd = &cobra.Command{
	Use:   "duplicates",
	Short: "Run the advisory duplicate scan",
	RunE: func(cmd *cobra.Command, args []string) error {
		book, done, err := loadBook(cmd.Context())
		if err != nil {
			return err
		}
		defer done()

		pairs := ledger.ScanDuplicates(book)
		if len(pairs) == 0 {
			fmt.Println("no possible duplicates found")
			return nil
		}
		for _, p := range pairs {
			a, b := book.Transactions[p.First], book.Transactions[p.Second]
			fmt.Printf("rows %d/%d: %s %s to %q on %s and %s\n",
				p.First, p.Second, a.Amount, a.Currency, a.Payee, a.Date, b.Date)
		}
		return nil
	},
}

var applyCmd = &cobra.Command{
	Use:   "apply <payload.json>",
	Short: "Apply a change-request payload from a JSON file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		var req engine.ChangeRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			return fmt.Errorf("undecodable change request: %w", err)
		}

		store, err := sqlite.New(dbPath)
		if err != nil {
			return err
		}
		defer store.Close()

		log := logger.New()
		eng := engine.New(store, ledger.NewCalculator(nil), logger.WithComponent(log, "engine"))
		sess := engine.NewSession("ledgerctl")

		result, err := eng.Apply(cmd.Context(), sess, req)
		if err != nil {
			return err
		}

		out, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(out))
		return nil
	},
}
