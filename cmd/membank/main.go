// membank is the command-line front end for a memory bank: a directory
// of tracked markdown files with a durable metadata index, version
// history, dependency graph, and duplicate detection.
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/membank/internal/bank"
	"github.com/standardbeagle/membank/internal/debug"
	"github.com/standardbeagle/membank/internal/dedup"
	"github.com/standardbeagle/membank/internal/version"
)

func main() {
	app := &cli.App{
		Name:    "membank",
		Usage:   "file-backed memory bank for documentation-driven workflows",
		Version: version.FullInfo(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "root",
				Aliases: []string{"r"},
				Value:   ".",
				Usage:   "memory bank root directory",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "explicit config file (default: .membank.kdl under the root)",
			},
			&cli.BoolFlag{
				Name:  "debug-log",
				Usage: "write debug output to a timestamped file under the temp dir",
			},
		},
		Before: func(c *cli.Context) error {
			if c.Bool("debug-log") {
				path, err := debug.InitLogFile()
				if err != nil {
					return err
				}
				fmt.Fprintf(os.Stderr, "debug log: %s\n", path)
			}
			return nil
		},
		After: func(c *cli.Context) error {
			return debug.CloseLogFile()
		},
		Commands: []*cli.Command{
			statusCommand(),
			checkCommand(),
			historyCommand(),
			duplicatesCommand(),
			graphCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "membank: %v\n", err)
		os.Exit(1)
	}
}

// openBank opens the bank for CLI use. The watcher is pointless for a
// one-shot command, so it stays off.
func openBank(c *cli.Context) (*bank.Bank, error) {
	b, err := bank.Open(c.String("root"), bank.Options{
		DisableWatcher: true,
		ConfigFile:     c.String("config"),
	})
	if err != nil {
		return nil, err
	}
	if warn := b.LoadWarning(); warn != nil {
		fmt.Fprintf(os.Stderr, "warning: %v\n", warn)
	}
	return b, nil
}

func statusCommand() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "summarize the bank: tracked files, sizes, tokens, history",
		Action: func(c *cli.Context) error {
			b, err := openBank(c)
			if err != nil {
				return err
			}
			defer b.Close()

			stats := b.Stats()
			fmt.Printf("Root:   %s\n", b.Root())
			fmt.Printf("Files:  %d\n", stats.Files)
			fmt.Printf("Bytes:  %d\n", stats.Bytes)
			fmt.Printf("Tokens: %d\n", stats.Tokens)

			usage, err := b.HistoryDiskUsage("")
			if err == nil {
				fmt.Printf("History: %d bytes\n", usage)
			}

			fmt.Println()
			for _, rec := range b.List() {
				fmt.Printf("  %-28s %8d bytes  %6d tokens  v%-3d %s\n",
					rec.Name, rec.SizeBytes, rec.TokenCount, rec.VersionCount, rec.Category)
			}
			return nil
		},
	}
}

func checkCommand() *cli.Command {
	return &cli.Command{
		Name:  "check",
		Usage: "verify index metadata against on-disk content",
		Action: func(c *cli.Context) error {
			b, err := openBank(c)
			if err != nil {
				return err
			}
			defer b.Close()

			issues, err := b.ConsistencyCheck(context.Background())
			if err != nil {
				return err
			}
			if len(issues) == 0 {
				fmt.Println("consistent: index matches disk")
				return nil
			}
			for _, issue := range issues {
				fmt.Printf("  %s: %s\n", issue.Name, issue.Detail)
			}
			return fmt.Errorf("%d consistency issue(s)", len(issues))
		},
	}
}

func historyCommand() *cli.Command {
	return &cli.Command{
		Name:      "history",
		Usage:     "list retained versions of a file, or diff two of them",
		ArgsUsage: "<file> [fromVersion toVersion]",
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return fmt.Errorf("usage: membank history <file> [from to]")
			}
			b, err := openBank(c)
			if err != nil {
				return err
			}
			defer b.Close()

			name := c.Args().Get(0)
			if c.NArg() >= 3 {
				from, err1 := strconv.Atoi(c.Args().Get(1))
				to, err2 := strconv.Atoi(c.Args().Get(2))
				if err1 != nil || err2 != nil {
					return fmt.Errorf("versions must be numbers")
				}
				diff, err := b.DiffVersions(name, from, to)
				if err != nil {
					return err
				}
				fmt.Print(diff)
				return nil
			}

			versions, err := b.History(name)
			if err != nil {
				return err
			}
			if len(versions) == 0 {
				fmt.Printf("no history for %s\n", name)
				return nil
			}
			for _, v := range versions {
				fmt.Printf("  v%-3d %s  %8d bytes  %s\n",
					v.Version, v.CreatedAt.Format("2006-01-02 15:04:05"), v.SizeBytes, v.Description)
			}
			return nil
		},
	}
}

func duplicatesCommand() *cli.Command {
	return &cli.Command{
		Name:  "duplicates",
		Usage: "scan tracked files for duplicated sections",
		Action: func(c *cli.Context) error {
			b, err := openBank(c)
			if err != nil {
				return err
			}
			defer b.Close()

			report, err := b.ScanDuplicates(context.Background())
			if err != nil {
				return err
			}

			if len(report.ExactDuplicates) == 0 && len(report.SimilarSections) == 0 {
				fmt.Printf("no duplicates in %d sections\n", report.SectionsScanned)
				return nil
			}
			for _, pair := range report.ExactDuplicates {
				fmt.Println(dedup.RefactoringSuggestion(pair))
			}
			for _, pair := range report.SimilarSections {
				fmt.Println(dedup.RefactoringSuggestion(pair))
			}
			return nil
		},
	}
}

func graphCommand() *cli.Command {
	return &cli.Command{
		Name:  "graph",
		Usage: "print loading order, cycles, and a mermaid diagram",
		Action: func(c *cli.Context) error {
			b, err := openBank(c)
			if err != nil {
				return err
			}
			defer b.Close()

			order := b.LoadingOrder()
			fmt.Println("Loading order:")
			for i, name := range order.Loaded {
				fmt.Printf("  %2d. %s\n", i+1, name)
			}
			for _, cycle := range order.Cycles {
				fmt.Printf("cycle: %v\n", cycle)
			}

			fmt.Println()
			fmt.Print(b.ExportMermaid())
			return nil
		},
	}
}
