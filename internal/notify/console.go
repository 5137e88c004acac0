package notify

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/olekukonko/tablewriter"
)

// ConsoleSender renders each alert as a small table, for operators running
// the exchange in a terminal.
type ConsoleSender struct {
	mu    sync.Mutex
	out   io.Writer
	clock func() time.Time
}

// NewConsoleSender writes alerts to out.
func NewConsoleSender(out io.Writer) *ConsoleSender {
	return &ConsoleSender{out: out, clock: time.Now}
}

// Send writes one table per alert.
func (c *ConsoleSender) Send(_ context.Context, title, message string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	table := tablewriter.NewWriter(c.out)
	table.Header("Time", "Alert", "Detail")
	if err := table.Append(c.clock().UTC().Format(time.RFC3339), title, message); err != nil {
		return err
	}
	return table.Render()
}

// Name returns the sender identifier.
func (c *ConsoleSender) Name() string { return "console" }
