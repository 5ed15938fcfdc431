package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/faithcheck/internal/dataset"
	"github.com/sells-group/faithcheck/internal/model"
)

var datasetsCmd = &cobra.Command{
	Use:   "datasets",
	Short: "List available datasets",
	RunE: func(cmd *cobra.Command, _ []string) error {
		infos, err := dataset.NewRegistry(cfg.Datasets.Dir).List()
		if err != nil {
			return eris.Wrap(err, "datasets")
		}

		test, _ := cmd.Flags().GetString("test")
		formatDatasets(os.Stdout, filterDatasets(infos, model.TestType(test)))
		return nil
	},
}

func init() {
	datasetsCmd.Flags().String("test", "", "only list datasets of this test (cot_faithfulness, sycophancy)")
	rootCmd.AddCommand(datasetsCmd)
}

func filterDatasets(infos []dataset.Info, test model.TestType) []dataset.Info {
	if test == "" {
		return infos
	}
	var out []dataset.Info
	for _, info := range infos {
		if info.Test == test {
			out = append(out, info)
		}
	}
	return out
}

// formatDatasets writes a tabular list of datasets to w.
func formatDatasets(out io.Writer, infos []dataset.Info) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "NAME\tTEST\tQUESTIONS\tDESCRIPTION")
	for _, info := range infos {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", info.Name, info.Test, info.Count, info.Description)
	}
	_ = w.Flush()
}
