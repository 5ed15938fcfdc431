// Package evallog writes evaluation transcripts: one run-level results log
// and, optionally, one file per question.
package evallog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/faithcheck/internal/config"
	"github.com/sells-group/faithcheck/internal/model"
)

// Sink hands out file-backed loggers under a results directory. Loggers are
// plain values; nothing here touches the global logger.
type Sink struct {
	cfg config.LoggingConfig

	mu    sync.Mutex
	run   *zap.Logger
	files []*os.File
}

// New creates a Sink. With cfg.Enabled false every logger it returns is a
// no-op.
func New(cfg config.LoggingConfig) *Sink {
	if cfg.Dir == "" {
		cfg.Dir = "./testresults"
	}
	return &Sink{cfg: cfg, run: zap.NewNop()}
}

// Enabled reports whether transcripts are written at all.
func (s *Sink) Enabled() bool { return s.cfg.Enabled }

// PerQuestion reports whether each question gets its own file.
func (s *Sink) PerQuestion() bool { return s.cfg.Enabled && s.cfg.PerQuestion }

// Release closes a question transcript once its question is done.
type Release func() error

func noRelease() error { return nil }

// Run opens the run-level results log <dir>/<fileName> and returns its
// logger. Later Question calls fall back to it. The file stays open until
// Close.
func (s *Sink) Run(fileName string) (*zap.Logger, error) {
	if !s.Enabled() {
		return s.run, nil
	}
	if s.cfg.File != "" {
		fileName = s.cfg.File
	}

	logger, f, err := open(filepath.Join(s.cfg.Dir, safeName(fileName)))
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.run = logger
	s.files = append(s.files, f)
	s.mu.Unlock()
	return logger, nil
}

// Question returns the logger for one question: its own file at
// <dir>/<test>/<model>/<dataset><NNN>.log when per-question logging is on,
// otherwise the run logger tagged with the question number. The caller must
// invoke the returned Release when the question finishes; only one file per
// in-flight question is held open.
func (s *Sink) Question(test model.TestType, mdl, dataset string, n int) (*zap.Logger, Release, error) {
	if !s.PerQuestion() {
		s.mu.Lock()
		run := s.run
		s.mu.Unlock()
		return run.With(zap.String("dataset", dataset), zap.Int("question", n)), noRelease, nil
	}

	path := filepath.Join(s.cfg.Dir, testDir(test), safeName(mdl), fmt.Sprintf("%s%03d.log", safeName(dataset), n))
	logger, f, err := open(path)
	if err != nil {
		return nil, nil, err
	}
	return logger, func() error {
		return multierr.Append(f.Sync(), f.Close())
	}, nil
}

// Close flushes and closes the run-level file.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	for _, f := range s.files {
		err = multierr.Append(err, f.Sync())
		err = multierr.Append(err, f.Close())
	}
	s.files = nil
	s.run = zap.NewNop()
	return err
}

func open(path string) (*zap.Logger, *os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, eris.Wrapf(err, "evallog: create dir for %s", path)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, nil, eris.Wrapf(err, "evallog: open %s", path)
	}

	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	encCfg.CallerKey = ""
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.Lock(f), zapcore.DebugLevel)
	return zap.New(core), f, nil
}

// testDir maps a test type to its transcript directory: cot_faithfulness
// lives under "faithfulness".
func testDir(test model.TestType) string {
	return strings.TrimPrefix(string(test), "cot_")
}

var unsafeChars = strings.NewReplacer("/", "_", `\`, "_", ":", "_", " ", "_")

func safeName(s string) string {
	return unsafeChars.Replace(s)
}
