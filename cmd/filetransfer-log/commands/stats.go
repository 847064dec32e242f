package commands

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/filetransfer-tool/filetransfer-go/pkg/log"
	"github.com/filetransfer-tool/filetransfer-go/pkg/wire"
)

// Stats holds aggregate statistics about a log file.
type Stats struct {
	TotalEvents       int
	EventsByLayer     map[log.Layer]int
	EventsByCategory  map[log.Category]int
	EventsByDirection map[log.Direction]int
	Connections       map[string]*ConnectionStats
	Transfers         map[wire.Operation]*TransferStats
	Errors            int
	Truncated         bool
	TimeRange         struct {
		Start time.Time
		End   time.Time
	}
}

// ConnectionStats holds statistics for a single connection.
type ConnectionStats struct {
	FirstSeen  time.Time
	LastSeen   time.Time
	Events     int
	RemoteAddr string
	Interface  log.Interface
}

// TransferStats aggregates the transfer events of one operation.
type TransferStats struct {
	Count    int
	Failed   int
	Bytes    int64
	Duration time.Duration
}

func newStats() *Stats {
	return &Stats{
		EventsByLayer:     make(map[log.Layer]int),
		EventsByCategory:  make(map[log.Category]int),
		EventsByDirection: make(map[log.Direction]int),
		Connections:       make(map[string]*ConnectionStats),
		Transfers:         make(map[wire.Operation]*TransferStats),
	}
}

func (s *Stats) add(event log.Event) {
	s.TotalEvents++
	s.EventsByLayer[event.Layer]++
	s.EventsByCategory[event.Category]++
	s.EventsByDirection[event.Direction]++

	if s.TimeRange.Start.IsZero() || event.Timestamp.Before(s.TimeRange.Start) {
		s.TimeRange.Start = event.Timestamp
	}
	if event.Timestamp.After(s.TimeRange.End) {
		s.TimeRange.End = event.Timestamp
	}

	if event.ConnectionID != "" {
		conn, ok := s.Connections[event.ConnectionID]
		if !ok {
			conn = &ConnectionStats{
				FirstSeen: event.Timestamp,
				LastSeen:  event.Timestamp,
				Interface: event.Interface,
			}
			s.Connections[event.ConnectionID] = conn
		}
		conn.Events++
		if event.Timestamp.After(conn.LastSeen) {
			conn.LastSeen = event.Timestamp
		}
		if conn.RemoteAddr == "" {
			conn.RemoteAddr = event.RemoteAddr
		}
	}

	if tr := event.Transfer; tr != nil {
		ts, ok := s.Transfers[tr.Operation]
		if !ok {
			ts = &TransferStats{}
			s.Transfers[tr.Operation] = ts
		}
		ts.Count++
		if tr.Status != wire.StatusOK {
			ts.Failed++
		}
		ts.Bytes += tr.Bytes
		ts.Duration += tr.Duration
	}

	if event.Error != nil {
		s.Errors++
	}
}

// RunStats analyzes the log file and prints statistics.
func RunStats(path string, w io.Writer) error {
	reader, err := log.NewReader(path)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	stats := newStats()
	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if errors.Is(err, log.ErrTruncated) {
			stats.Truncated = true
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		stats.add(event)
	}

	printStats(w, stats)
	return nil
}

func printStats(w io.Writer, stats *Stats) {
	fmt.Fprintln(w, "=== File Transfer Log Statistics ===")
	fmt.Fprintln(w)
	if stats.Truncated {
		fmt.Fprintln(w, "Warning: the log ends with a truncated event")
		fmt.Fprintln(w)
	}

	if stats.TotalEvents > 0 {
		fmt.Fprintf(w, "Time Range: %s to %s\n",
			stats.TimeRange.Start.Format(time.RFC3339),
			stats.TimeRange.End.Format(time.RFC3339))
		fmt.Fprintf(w, "Duration:   %s\n", stats.TimeRange.End.Sub(stats.TimeRange.Start).Round(time.Second))
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Total Events: %d\n", stats.TotalEvents)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Layer:")
	for _, layer := range []log.Layer{log.LayerTransport, log.LayerWire, log.LayerService} {
		if count := stats.EventsByLayer[layer]; count > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", layer.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Category:")
	for cat := log.CategoryMessage; cat <= log.CategoryError; cat++ {
		if count := stats.EventsByCategory[cat]; count > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", cat.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Direction:")
	for _, dir := range []log.Direction{log.DirectionIn, log.DirectionOut} {
		if count := stats.EventsByDirection[dir]; count > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", dir.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	if len(stats.Transfers) > 0 {
		fmt.Fprintln(w, "Transfers:")
		printTransfers(w, stats.Transfers)
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Connections: %d\n", len(stats.Connections))
	if len(stats.Connections) > 0 {
		type connInfo struct {
			id    string
			stats *ConnectionStats
		}
		conns := make([]connInfo, 0, len(stats.Connections))
		for id, cs := range stats.Connections {
			conns = append(conns, connInfo{id, cs})
		}
		sort.Slice(conns, func(i, j int) bool {
			return conns[i].stats.FirstSeen.Before(conns[j].stats.FirstSeen)
		})

		fmt.Fprintln(w)
		for _, c := range conns {
			duration := c.stats.LastSeen.Sub(c.stats.FirstSeen).Round(time.Millisecond)
			fmt.Fprintf(w, "  [%s] %s, %d events, duration %s\n",
				shortenConnID(c.id), c.stats.Interface.String(), c.stats.Events, duration)
			if c.stats.RemoteAddr != "" {
				fmt.Fprintf(w, "           Peer: %s\n", c.stats.RemoteAddr)
			}
		}
	}

	if stats.Errors > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Errors: %d\n", stats.Errors)
	}
}

func printTransfers(w io.Writer, transfers map[wire.Operation]*TransferStats) {
	ops := make([]wire.Operation, 0, len(transfers))
	for op := range transfers {
		ops = append(ops, op)
	}
	sort.Slice(ops, func(i, j int) bool { return ops[i] < ops[j] })

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Operation", "Count", "Failed", "Bytes", "Avg Duration"})
	for _, op := range ops {
		ts := transfers[op]
		avg := ts.Duration / time.Duration(ts.Count)
		t.AppendRow(table.Row{op.String(), ts.Count, ts.Failed, ts.Bytes, formatDuration(avg)})
	}
	t.SetStyle(table.StyleLight)
	t.Render()
}
