// disk_usage.go — ёмкость файловой системы хранилища для GET /info.
package handlers

import (
	"fmt"
	"math"
	"syscall"

	"github.com/bigkaa/reception/internal/api/generated"
)

// diskUsage считает ёмкость файловой системы, содержащей dir.
// Занятое место — блоки без свободных (Bfree), доступное — блоки,
// доступные непривилегированному процессу (Bavail). Процент
// заполнения считается как в df: used / (used + available).
func diskUsage(dir string) (generated.DiskInfo, error) {
	var st syscall.Statfs_t
	if err := syscall.Statfs(dir, &st); err != nil {
		return generated.DiskInfo{}, fmt.Errorf("ошибка statfs %s: %w", dir, err)
	}

	bsize := int64(st.Bsize)
	info := generated.DiskInfo{
		TotalBytes:     int64(st.Blocks) * bsize,
		UsedBytes:      int64(st.Blocks-st.Bfree) * bsize,
		AvailableBytes: int64(st.Bavail) * bsize,
	}
	if denom := info.UsedBytes + info.AvailableBytes; denom > 0 {
		pct := float64(info.UsedBytes) / float64(denom) * 100
		info.UsedPercent = math.Round(pct*10) / 10
	}
	return info, nil
}
