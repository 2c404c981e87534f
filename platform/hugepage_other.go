//go:build !linux

package platform

// CodeSegmentHugePages is a no-op outside Linux: transparent-huge-page
// hinting via madvise has no portable equivalent this package targets.
func CodeSegmentHugePages(c *CodeSegment) {}
