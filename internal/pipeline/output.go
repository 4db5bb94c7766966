package pipeline

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Distributed-PageRank/internal/rank"
)

// WriteTop renders one "<vertex>:\t<rank>" line per entry, ranks in their
// shortest exact decimal form.
func WriteTop(w io.Writer, top []rank.Ranked) error {
	bw := bufio.NewWriter(w)
	for _, r := range top {
		bw.WriteString(r.Vertex.String())
		bw.WriteString(":\t")
		bw.WriteString(strconv.FormatFloat(r.Rank, 'f', -1, 64))
		bw.WriteByte('\n')
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("writing ranking: %w", err)
	}
	return nil
}

// WriteElapsed renders the trailing timing line.
func WriteElapsed(w io.Writer, d time.Duration) error {
	_, err := fmt.Fprintf(w, "Total program time: %.2f seconds\n", d.Seconds())
	return err
}
