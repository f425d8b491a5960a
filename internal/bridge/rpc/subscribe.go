package rpc

import (
	"context"
	"time"
)

// pollInterval is the Live Tailer's new-logs poll period, per spec.md
// §4.F ("poll every ~2 s"). RPCURL is documented (internal/config/
// config.go) as a plain JSON-RPC HTTP(S) endpoint, and spec.md §4.1 names
// eth_newFilter/eth_getFilterChanges rather than eth_subscribe as the
// live-feed surface, matching original_source/indexer/poll.py's polling
// loop (the reference this component is grounded on) rather than a
// WS/IPC-only push subscription.
const (
	pollInterval      = 2 * time.Second
	pollLogBufferSize = 1000
	pollErrBufferSize = 10
)

// PollLogs streams newly produced logs matching address/topics to the
// returned channel until ctx is cancelled. It starts from the chain head
// at call time (the Backfill Worker already covers everything earlier)
// and on each tick fetches eth_getLogs over [lastSeen+1, head], advancing
// lastSeen only after a window's logs are delivered. This is the feed the
// Live Tailer (spec.md §4.F) reads: "polls for new blocks; for each new
// block, fetches logs... the tailer never advances the backfill
// checkpoint."
func (c *Client) PollLogs(ctx context.Context, address string, topics []string) (<-chan Log, <-chan error) {
	out := make(chan Log, pollLogBufferSize)
	errCh := make(chan error, pollErrBufferSize)

	go c.runLogPoll(ctx, address, topics, out, errCh)

	return out, errCh
}

func (c *Client) runLogPoll(ctx context.Context, address string, topics []string, out chan<- Log, errCh chan<- error) {
	defer close(out)
	defer close(errCh)

	last, err := c.BlockNumber(ctx)
	if err != nil {
		c.sendErr(ctx, errCh, err)
		last = 0
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		head, err := c.BlockNumber(ctx)
		if err != nil {
			if !c.sendErr(ctx, errCh, err) {
				return
			}
			continue
		}
		if head <= last {
			continue
		}

		logs, err := c.GetLogs(ctx, address, topics, last+1, head)
		if err != nil {
			if !c.sendErr(ctx, errCh, err) {
				return
			}
			continue
		}

		for _, l := range logs {
			select {
			case out <- l:
			case <-ctx.Done():
				return
			}
		}

		last = head
	}
}

func (c *Client) sendErr(ctx context.Context, errCh chan<- error, err error) bool {
	select {
	case errCh <- err:
	case <-ctx.Done():
		return false
	default:
	}
	return true
}
