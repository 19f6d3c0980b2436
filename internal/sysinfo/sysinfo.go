package sysinfo

import (
	"bufio"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
)

// Snapshot is a point-in-time read of host resources.
type Snapshot struct {
	CPUCores        int
	TotalMemBytes   int64
	FreeMemBytes    int64
	RotationalDisks []string
}

// Read collects a resource snapshot. Fields that cannot be determined are
// left at their zero value; Read never fails.
func Read() Snapshot {
	snap := Snapshot{CPUCores: runtime.GOMAXPROCS(0)}
	snap.TotalMemBytes, snap.FreeMemBytes = readMeminfo()
	snap.RotationalDisks = rotationalDisks()
	return snap
}

// Advise returns human-readable warnings for the given worker count.
// Warnings are purely informational and never alter scheduling.
func Advise(snap Snapshot, workerCount int) []string {
	var warnings []string

	// Rough per-worker budget: decoding a large image can hold several
	// hundred MB of pixel data at once.
	const perWorkerBudget = 512 * 1024 * 1024
	if snap.FreeMemBytes > 0 && int64(workerCount)*perWorkerBudget > snap.FreeMemBytes {
		warnings = append(warnings, fmt.Sprintf(
			"free memory (%.1f GB) may be tight for %d workers; consider lowering the thread count",
			float64(snap.FreeMemBytes)/(1<<30), workerCount))
	}

	if workerCount > snap.CPUCores*2 && snap.CPUCores > 0 {
		warnings = append(warnings, fmt.Sprintf(
			"%d workers on %d cores will oversubscribe the CPU", workerCount, snap.CPUCores))
	}

	if len(snap.RotationalDisks) > 0 {
		warnings = append(warnings, fmt.Sprintf(
			"rotational disk(s) detected (%s); parallel I/O may seek-thrash",
			strings.Join(snap.RotationalDisks, ", ")))
	}

	return warnings
}

// readMeminfo parses /proc/meminfo. Returns zeros on non-Linux hosts.
func readMeminfo() (total, free int64) {
	f, err := os.Open("/proc/meminfo")
	if err != nil {
		return 0, 0
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 {
			continue
		}
		kb, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			continue
		}
		switch fields[0] {
		case "MemTotal:":
			total = kb * 1024
		case "MemAvailable:":
			free = kb * 1024
		}
	}
	return total, free
}

// rotationalDisks lists block devices flagged rotational in sysfs.
func rotationalDisks() []string {
	entries, err := os.ReadDir("/sys/block")
	if err != nil {
		return nil
	}
	var disks []string
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, "loop") || strings.HasPrefix(name, "ram") {
			continue
		}
		data, err := os.ReadFile("/sys/block/" + name + "/queue/rotational")
		if err != nil {
			continue
		}
		if strings.TrimSpace(string(data)) == "1" {
			disks = append(disks, name)
		}
	}
	return disks
}
