package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"pinfe/internal/config"
	"pinfe/internal/control"
	"pinfe/internal/shared"
)

type lookupFlags struct {
	configPath string
	dictDirs   []string
	extraDicts []string
	profile    string
	level3     bool
	fuzzy      bool
	limit      int
	asJSON     bool
}

func newLookupCommand() *cobra.Command {
	var f lookupFlags
	cmd := &cobra.Command{
		Use:   "lookup <pinyin>...",
		Short: "Query the dictionaries without grabbing a keyboard",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLookup(cmd, f, args)
		},
	}
	flags := cmd.Flags()
	flags.StringVarP(&f.configPath, "config", "c", "", "config file")
	flags.StringSliceVar(&f.dictDirs, "dict-dir", nil, "dictionary directory, one tier each (repeatable)")
	flags.StringSliceVar(&f.extraDicts, "extra-dict", nil, "extra dictionary file (repeatable)")
	flags.StringVarP(&f.profile, "profile", "p", "", "dictionary profile (default from config)")
	flags.BoolVar(&f.level3, "level3", false, "load level3 dictionaries")
	flags.BoolVar(&f.fuzzy, "fuzzy", false, "enable fuzzy matching")
	flags.IntVarP(&f.limit, "limit", "n", 20, "candidates to print per query (0 for all)")
	flags.BoolVar(&f.asJSON, "json", false, "print JSON")
	return cmd
}

func runLookup(cmd *cobra.Command, f lookupFlags, queries []string) error {
	cfg, _, err := config.Resolve(f.configPath)
	if err != nil {
		return err
	}
	if len(f.dictDirs) > 0 {
		cfg.Dictionary.DictDirs = f.dictDirs
	}
	if len(f.extraDicts) > 0 {
		cfg.Dictionary.ExtraDicts = f.extraDicts
	}
	if f.profile != "" {
		cfg.Dictionary.DefaultProfile = f.profile
	}
	if f.level3 {
		cfg.Dictionary.EnableLevel3 = true
	}
	if f.fuzzy {
		cfg.Input.Fuzzy = true
	}

	sh, err := shared.New(cfg, nil)
	if err != nil {
		return err
	}
	report, err := sh.ReloadConfigured(cmd.Context())
	if err != nil {
		return err
	}
	for _, le := range report.Errors {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", le)
	}

	out := cmd.OutOrStdout()
	results := make(map[string][]control.LookupItem, len(queries))
	for _, q := range queries {
		cands := sh.Lookup(q)
		if f.limit > 0 && len(cands) > f.limit {
			cands = cands[:f.limit]
		}
		items := make([]control.LookupItem, 0, len(cands))
		for _, c := range cands {
			items = append(items, control.LookupItem{Word: c.Word, Tier: c.Tier, Key: c.Key, Tags: c.Tags, Fuzzy: c.Fuzzy})
		}
		results[q] = items
	}

	if f.asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for i, q := range queries {
		if len(queries) > 1 {
			if i > 0 {
				fmt.Fprintln(tw)
			}
			fmt.Fprintf(tw, "%s:\n", q)
		}
		items := results[q]
		if len(items) == 0 {
			fmt.Fprintln(tw, "  (no candidates)")
			continue
		}
		for n, item := range items {
			mark := ""
			if item.Fuzzy {
				mark = "~"
			}
			fmt.Fprintf(tw, "%d\t%s%s\t%s\t%d\t%s\n", n+1, item.Word, mark, item.Key, item.Tier, strings.Join(item.Tags, ","))
		}
	}
	return tw.Flush()
}
