package handlers

import (
	"mime"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/bigkaa/reception/internal/api/generated"
)

func TestClientIP(t *testing.T) {
	tests := []struct {
		remoteAddr string
		want       string
	}{
		{"10.1.2.3:54321", "10.1.2.3"},
		{"[::1]:8080", "::1"},
		{"unix-socket", "unix-socket"},
	}

	for _, tt := range tests {
		r := httptest.NewRequest("GET", "/", nil)
		r.RemoteAddr = tt.remoteAddr
		if got := clientIP(r); got != tt.want {
			t.Errorf("clientIP(%q) = %q, ожидалось %q", tt.remoteAddr, got, tt.want)
		}
	}
}

func TestAttachment_NonASCII(t *testing.T) {
	name := "Diplom__Иван_Петров__scan.pdf"

	cd := attachment(name)
	disposition, params, err := mime.ParseMediaType(cd)
	if err != nil {
		t.Fatalf("ParseMediaType(%q): %v", cd, err)
	}
	if disposition != "attachment" {
		t.Errorf("disposition = %q", disposition)
	}
	if params["filename"] != name {
		t.Errorf("filename = %q, ожидалось %q", params["filename"], name)
	}
}

func TestCheckWritable(t *testing.T) {
	dir := t.TempDir()

	if res := checkWritable(dir); res.Status != generated.CheckResultStatusOk {
		t.Errorf("доступная директория: %+v", res)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("проверка оставила файлы: %d", len(entries))
	}

	res := checkWritable(filepath.Join(dir, "missing"))
	if res.Status != generated.CheckResultStatusFail || res.Message == nil {
		t.Errorf("отсутствующая директория: %+v", res)
	}
}

func TestDiskUsage(t *testing.T) {
	info, err := diskUsage(t.TempDir())
	if err != nil {
		t.Fatalf("diskUsage: %v", err)
	}
	if info.TotalBytes <= 0 || info.UsedBytes < 0 || info.AvailableBytes < 0 {
		t.Errorf("ёмкость: %+v", info)
	}
	if info.UsedBytes+info.AvailableBytes > info.TotalBytes {
		t.Errorf("занято + доступно больше общего объёма: %+v", info)
	}
	if info.UsedPercent < 0 || info.UsedPercent > 100 {
		t.Errorf("процент заполнения %.1f", info.UsedPercent)
	}

	if _, err := diskUsage(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("ожидалась ошибка для отсутствующей директории")
	}
}

func TestOwnerFromParams(t *testing.T) {
	name, last := "  Иван ", "Петров"
	owner := ownerFromParams(&name, &last)
	if owner.FirstName != "Иван" || owner.LastName != "Петров" {
		t.Errorf("владелец: %+v", owner)
	}
	if owner := ownerFromParams(nil, nil); owner.FirstName != "" || owner.LastName != "" {
		t.Errorf("без параметров: %+v", owner)
	}
}
