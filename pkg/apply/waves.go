package apply

import (
	"context"

	"github.com/sourcegraph/conc/pool"

	"github.com/syslua/syslua/pkg/constants"
	"github.com/syslua/syslua/pkg/logger"
)

var waveLog = logger.New("apply:wave")

// nodeResult is the outcome of running a single node within a wave. Workers
// always return (nodeResult, nil) from the pool callback, folding failure
// into the struct itself, so one node's error never cancels its siblings —
// they are left to drain naturally per the wave's cancellation policy.
type nodeResult struct {
	Node Node
	Err  error
}

// runWave executes every node in a wave concurrently, bounded by
// maxGoroutines, and returns one result per node. It does not stop early: a
// failing node does not prevent its wave siblings from finishing.
func runWave(ctx context.Context, nodes []Node, maxGoroutines int, run func(context.Context, Node) error) []nodeResult {
	p := pool.NewWithResults[nodeResult]().WithContext(ctx).WithMaxGoroutines(maxGoroutines)

	for _, n := range nodes {
		n := n
		p.Go(func(ctx context.Context) (nodeResult, error) {
			err := run(ctx, n)
			if err != nil {
				waveLog.Printf("node failed: kind=%s hash=%s error=%v", n.Kind, n.Hash, err)
			}
			return nodeResult{Node: n, Err: err}, nil
		})
	}

	results, _ := p.Wait()
	return results
}

// firstError returns the first failing result's error, or nil if the wave
// succeeded entirely.
func firstError(results []nodeResult) error {
	for _, r := range results {
		if r.Err != nil {
			return r.Err
		}
	}
	return nil
}

// failedHashes extracts the hashes of nodes that failed in a wave.
func failedHashes(results []nodeResult) []constants.ObjectHash {
	var out []constants.ObjectHash
	for _, r := range results {
		if r.Err != nil {
			out = append(out, r.Node.Hash)
		}
	}
	return out
}
