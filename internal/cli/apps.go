package cli

import (
	"fmt"

	"github.com/roach88/weft/internal/apps/counter"
	"github.com/roach88/weft/internal/ir"
	"github.com/roach88/weft/internal/journal"
	"github.com/roach88/weft/internal/program"
)

// counterFromMount rebuilds the counter recorded by a journal mount.
func counterFromMount(m journal.Mount) (program.Application[counter.Msg], error) {
	if m.App != "counter" {
		return nil, fmt.Errorf("unknown application %q", m.App)
	}
	start := 0
	if v, ok := m.Params["start"]; ok {
		n, ok := v.(ir.Int)
		if !ok {
			return nil, fmt.Errorf("start parameter is %T, not an integer", v)
		}
		start = int(n)
	}
	return counter.New(start), nil
}
