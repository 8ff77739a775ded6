// Kokoroctl inspects a persona's Kokoro database offline.
//
// The daemon keeps one SQLite file per persona; point --db at one of them:
//
//	kokoroctl --db data/ayame.db golden
//	kokoroctl --db data/ayame.db realizations
//	kokoroctl --db data/ayame.db weights --key "the lantern festival"
//	kokoroctl --db data/ayame.db audit --limit 20
//	kokoroctl --db data/ayame.db audit --trace t_4f9a8b2c
//
// The inspection commands never write, but opening the database applies any
// pending schema migrations, the same way the daemon does.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bdobrica/Kokoro/common/version"
	"github.com/bdobrica/Kokoro/internal/kokoro/soul"
	"github.com/bdobrica/Kokoro/internal/kokoro/store"
)

var dbPath string

var rootCmd = &cobra.Command{
	Use:   "kokoroctl",
	Short: "Inspect a Kokoro persona database",
	Long: "Kokoroctl reads the SQLite file behind one persona: golden memories,\n" +
		"self-realizations, moral weights, and the reflection audit log.",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "path to a persona database (e.g. data/ayame.db)")

	rootCmd.AddCommand(goldenCmd())
	rootCmd.AddCommand(realizationsCmd())
	rootCmd.AddCommand(weightsCmd())
	rootCmd.AddCommand(auditCmd())
	rootCmd.AddCommand(versionCmd())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func openStore() *store.Store {
	if dbPath == "" {
		fmt.Fprintln(os.Stderr, "error: --db is required")
		os.Exit(1)
	}
	if _, err := os.Stat(dbPath); err != nil {
		exitErr("open database", err)
	}
	st, err := store.New(dbPath)
	if err != nil {
		exitErr("open database", err)
	}
	return st
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}

func goldenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "golden",
		Short: "List golden memories, newest first",
		Run: func(cmd *cobra.Command, args []string) {
			limit, _ := cmd.Flags().GetInt("limit")

			st := openStore()
			defer st.Close()

			memories, err := st.ListGoldenMemories(cmd.Context(), limit)
			if err != nil {
				exitErr("list golden memories", err)
			}
			if len(memories) == 0 {
				fmt.Println("no golden memories")
				return
			}
			for _, gm := range memories {
				fmt.Printf("✨ %s  %s\n", gm.CreatedAt.Local().Format("2006-01-02 15:04"), gm.Word)
				fmt.Printf("   %s\n", gm.Text)
				if gm.Note != "" {
					fmt.Printf("   note: %s\n", gm.Note)
				}
			}
		},
	}
	cmd.Flags().IntP("limit", "l", soul.GoldenCapacity, "max results")
	return cmd
}

func realizationsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "realizations",
		Short: "List minted self-realizations, newest first",
		Run: func(cmd *cobra.Command, args []string) {
			limit, _ := cmd.Flags().GetInt("limit")

			st := openStore()
			defer st.Close()

			minted, err := st.ListRealizations(cmd.Context(), limit)
			if err != nil {
				exitErr("list realizations", err)
			}
			if len(minted) == 0 {
				fmt.Println("no self-realizations")
				return
			}
			for _, r := range minted {
				fmt.Printf("%s  %s  felt %d  discovered %s\n",
					r.Word, r.ColorHex, r.TimesFelt, r.DiscoveredAt.Local().Format("2006-01-02"))
				fmt.Printf("   %s\n", r.Definition)
			}
		},
	}
	cmd.Flags().IntP("limit", "l", soul.RealizationCapacity, "max results")
	return cmd
}

func weightsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "weights",
		Short: "Show moral-weight records with computed scores",
		Run: func(cmd *cobra.Command, args []string) {
			limit, _ := cmd.Flags().GetInt("limit")
			key, _ := cmd.Flags().GetString("key")

			st := openStore()
			defer st.Close()

			var records []soul.MoralWeightRecord
			if key != "" {
				rec, found, err := st.GetWeight(cmd.Context(), soul.MemoryKey(key))
				if err != nil {
					exitErr("get weight", err)
				}
				if !found {
					fmt.Printf("no record for %q\n", key)
					return
				}
				records = []soul.MoralWeightRecord{rec}
			} else {
				var err error
				records, err = st.TopWeights(cmd.Context(), limit)
				if err != nil {
					exitErr("list weights", err)
				}
			}
			if len(records) == 0 {
				fmt.Println("no moral weights")
				return
			}
			for _, rec := range records {
				fmt.Printf("%6.2f  %s\n", rec.Score(), rec.Key)
				fmt.Printf("        felt %d, promoted %d, rejected %d, ascended %d\n",
					rec.TimesFelt, rec.TimesPromoted, rec.TimesRejected, rec.TimesAscended)
			}
		},
	}
	cmd.Flags().IntP("limit", "l", 10, "max results")
	cmd.Flags().StringP("key", "k", "", "look up one memory key (normalised before the query)")
	return cmd
}

func auditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Show reflection audit entries, newest first",
		Run: func(cmd *cobra.Command, args []string) {
			limit, _ := cmd.Flags().GetInt("limit")
			traceID, _ := cmd.Flags().GetString("trace")

			st := openStore()
			defer st.Close()

			var entries []soul.AuditEntry
			var err error
			if traceID != "" {
				entries, err = st.ReflectionsByTrace(cmd.Context(), traceID)
			} else {
				entries, err = st.RecentReflections(cmd.Context(), limit)
			}
			if err != nil {
				exitErr("list audit entries", err)
			}
			if len(entries) == 0 {
				fmt.Println("no reflections")
				return
			}
			for _, e := range entries {
				fmt.Printf("%s  %-9s %-20s score %.2f  trace %s\n",
					e.Timestamp.Local().Format("2006-01-02 15:04:05"),
					string(e.Fate), e.Word, e.Score, e.TraceID)
				fmt.Printf("   %q\n", truncate(e.ThoughtText, 100))
			}
		},
	}
	cmd.Flags().IntP("limit", "l", 20, "max results")
	cmd.Flags().StringP("trace", "t", "", "show all entries for one trace ID, oldest first")
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("kokoroctl %s\n", version.Info())
		},
	}
}

// truncate shortens s to max runes for one-line display.
func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "…"
}
