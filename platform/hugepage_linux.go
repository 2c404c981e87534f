//go:build linux

package platform

import (
	"os"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// hugePageConfig names one entry under /sys/kernel/mm/hugepages/: a page
// size in bytes and the madvise flag that requests it. Grounded on the
// teacher's internal/platform/mmap_linux_test.go contract (sorted
// descending by size, every entry non-zero) even though the teacher's own
// implementation file never made it into the retrieval pack.
type hugePageConfig struct {
	size int
	flag int
}

var hugePageConfigs = discoverHugePageConfigs()

const hugePageSysDir = "/sys/kernel/mm/hugepages/"

func discoverHugePageConfigs() []hugePageConfig {
	entries, err := os.ReadDir(hugePageSysDir)
	if err != nil {
		return nil
	}
	var configs []hugePageConfig
	for _, e := range entries {
		// Directory names look like "hugepages-2048kB".
		name := e.Name()
		i := strings.Index(name, "hugepages-")
		if i != 0 {
			continue
		}
		sizeStr := strings.TrimSuffix(strings.TrimPrefix(name, "hugepages-"), "kB")
		kb, err := strconv.Atoi(sizeStr)
		if err != nil || kb <= 0 {
			continue
		}
		configs = append(configs, hugePageConfig{size: kb * 1024, flag: unix.MADV_HUGEPAGE})
	}
	sort.Slice(configs, func(i, j int) bool { return configs[i].size > configs[j].size })
	return configs
}

func hasHugePages() bool { return len(hugePageConfigs) > 0 }

// CodeSegmentHugePages best-effort hints the kernel to back a freshly
// mmap'd code segment with transparent huge pages, reducing TLB pressure
// for JIT-heavy workloads. A failure to hint is not an error: the
// mapping remains fully usable at regular page granularity.
func CodeSegmentHugePages(c *CodeSegment) {
	if !hasHugePages() || len(c.Bytes) == 0 {
		return
	}
	_ = unix.Madvise(c.Bytes, unix.MADV_HUGEPAGE)
}
