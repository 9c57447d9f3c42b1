// Package sysinfo reports host resources shown in state snapshots.
package sysinfo

import (
	"context"
	"fmt"

	"github.com/shirou/gopsutil/v3/disk"

	"github.com/wcscanner/server/internal/rig"
)

// Disk reports usage of the filesystem holding a directory.
type Disk struct {
	dir string
}

func NewDisk(dir string) *Disk {
	return &Disk{dir: dir}
}

func (d *Disk) DiskUsage(ctx context.Context) (rig.DiskUsage, error) {
	stat, err := disk.UsageWithContext(ctx, d.dir)
	if err != nil {
		return rig.DiskUsage{}, fmt.Errorf("disk usage of %s: %w", d.dir, err)
	}
	return rig.DiskUsage{Total: stat.Total, Used: stat.Used, Free: stat.Free}, nil
}
