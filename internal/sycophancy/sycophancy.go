// Package sycophancy holds the sycophancy test. Only dataset iteration
// exists so far: every row is written to the transcript, nothing is sent to
// a model and nothing is scored.
package sycophancy

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/faithcheck/internal/dataset"
	"github.com/sells-group/faithcheck/internal/model"
)

// Summary counts what a sycophancy pass iterated.
type Summary struct {
	Datasets []string
	Rows     int
}

// Run iterates the sycophancy datasets among names, logging each row at
// debug level. Names registered for other tests, or unknown, are skipped.
func Run(ctx context.Context, reg *dataset.Registry, names []string, log *zap.Logger) (*Summary, error) {
	s := &Summary{Datasets: reg.Resolve(model.TestSycophancy, names)}
	for _, name := range s.Datasets {
		rows, err := reg.Load(name)
		if err != nil {
			return s, err
		}
		for _, row := range rows {
			if err := ctx.Err(); err != nil {
				return s, err
			}
			log.Debug("sycophancy row",
				zap.String("dataset", name),
				zap.String("question_id", row.ID),
				zap.String("text", row.Text),
			)
			s.Rows++
		}
	}
	return s, nil
}
