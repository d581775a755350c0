package encoder

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// ExecShrinker runs an external prover binary. The artifact is written to
// its stdin and a ShrinkResponse is expected on stdout.
type ExecShrinker struct {
	Command []string
	Timeout time.Duration
}

// Shrink implements Shrinker.
func (s *ExecShrinker) Shrink(ctx context.Context, artifact []byte) (*ShrunkProof, error) {
	if len(s.Command) == 0 {
		return nil, errors.New("no prover command configured")
	}
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, s.Command[0], s.Command[1:]...)
	cmd.Stdin = bytes.NewReader(artifact)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("prover command %s failed: %w: %s", s.Command[0], err, strings.TrimSpace(stderr.String()))
	}

	var resp ShrinkResponse
	if err := json.Unmarshal(stdout.Bytes(), &resp); err != nil {
		return nil, fmt.Errorf("failed to parse prover output: %w", err)
	}
	return resp.Decode()
}
