// Package classifier suggests complaint titles from photos by running the
// external image model (predict.py) as a subprocess.
package classifier

import (
	"bytes"
	"civicdesk/backend/internal/config"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Prediction is the classifier output plus the title suggested for it.
type Prediction struct {
	Label          string  `json:"label"`
	Confidence     float64 `json:"confidence"`
	SuggestedTitle string  `json:"suggestedTitle"`
}

// Classifier labels an image file.
type Classifier interface {
	Classify(ctx context.Context, imagePath string) (*Prediction, error)
}

// ErrBadOutput means the model ran but printed something that is not a prediction.
var ErrBadOutput = errors.New("classifier: invalid model output")

// SuggestTitle maps a label to a complaint title.
func SuggestTitle(label string) string {
	if title, ok := config.SuggestedTitles[label]; ok {
		return title
	}
	return config.FallbackSuggestedTitle
}

// ParseOutput decodes the JSON line printed by the model.
func ParseOutput(out []byte) (*Prediction, error) {
	var raw struct {
		Label      string  `json:"label"`
		Confidence float64 `json:"confidence"`
	}
	if err := json.Unmarshal(bytes.TrimSpace(out), &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadOutput, err)
	}
	return &Prediction{
		Label:          raw.Label,
		Confidence:     raw.Confidence,
		SuggestedTitle: SuggestTitle(raw.Label),
	}, nil
}

// runFunc executes a command and returns its stdout.
type runFunc func(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)

func execRun(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

// ScriptClassifier runs `<command> <script> <image>`.
type ScriptClassifier struct {
	command string
	script  string
	timeout time.Duration
	run     runFunc
	logger  *zap.Logger
}

func NewScriptClassifier(cfg config.ClassifierConfig, logger *zap.Logger) *ScriptClassifier {
	return &ScriptClassifier{
		command: cfg.Command,
		script:  cfg.Script,
		timeout: cfg.Timeout,
		run:     execRun,
		logger:  logger,
	}
}

func (c *ScriptClassifier) Classify(ctx context.Context, imagePath string) (*Prediction, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	stdout, stderr, err := c.run(ctx, c.command, c.script, imagePath)
	if err != nil {
		c.logger.Error("classifier process failed",
			zap.String("image", imagePath),
			zap.String("stderr", strings.TrimSpace(string(stderr))),
			zap.Error(err))
		return nil, fmt.Errorf("classifier: run %s: %w", c.script, err)
	}

	p, err := ParseOutput(stdout)
	if err != nil {
		c.logger.Error("classifier output rejected", zap.ByteString("stdout", stdout), zap.Error(err))
		return nil, err
	}
	return p, nil
}
