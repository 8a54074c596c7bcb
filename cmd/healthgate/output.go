package main

import (
	"fmt"
	"time"

	"github.com/loykin/healthgate"
)

func printStates(sts ...healthgate.State) {
	for _, st := range sts {
		line := fmt.Sprintf("%-20s %-10s", st.Name, st.Status)
		if st.PID > 0 {
			line += fmt.Sprintf("  pid=%d", st.PID)
		}
		if !st.StartedAt.IsZero() && st.Status == healthgate.StatusRunning {
			line += fmt.Sprintf("  up=%s", time.Since(st.StartedAt).Truncate(time.Second))
		}
		if st.LastError != "" {
			line += "  error=" + st.LastError
		}
		fmt.Println(line)
	}
}

func humanBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%dB", n)
	}
	div, exp := uint64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f%ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
