package staging

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"strings"
	"testing"
)

func TestStage(t *testing.T) {
	dir := t.TempDir()
	content := []byte("%PDF-1.7 содержимое")

	u, err := Stage(bytes.NewReader(content), "Справка.PDF", "application/pdf", dir, 1024)
	if err != nil {
		t.Fatalf("ошибка staging: %v", err)
	}
	defer u.Remove()

	if u.Ext != ".pdf" {
		t.Errorf("Ext: ожидалось .pdf, получено %s", u.Ext)
	}
	if u.Size != int64(len(content)) {
		t.Errorf("Size: ожидалось %d, получено %d", len(content), u.Size)
	}
	sum := sha256.Sum256(content)
	if u.Checksum != hex.EncodeToString(sum[:]) {
		t.Errorf("Checksum не совпадает")
	}
	if u.Stem() != "Справка" {
		t.Errorf("Stem: ожидалось Справка, получено %s", u.Stem())
	}
	if !strings.HasPrefix(u.Path, dir) {
		t.Errorf("временный файл вне tempDir: %s", u.Path)
	}

	data, err := u.ReadAll()
	if err != nil {
		t.Fatalf("ошибка чтения: %v", err)
	}
	if !bytes.Equal(data, content) {
		t.Error("содержимое не совпадает")
	}
}

func TestStage_ExactLimit(t *testing.T) {
	u, err := Stage(bytes.NewReader(make([]byte, 10)), "a.png", "", t.TempDir(), 10)
	if err != nil {
		t.Fatalf("файл ровно по лимиту должен приниматься: %v", err)
	}
	defer u.Remove()
	if u.Size != 10 {
		t.Errorf("Size: ожидалось 10, получено %d", u.Size)
	}
}

func TestStage_TooLarge(t *testing.T) {
	dir := t.TempDir()

	_, err := Stage(bytes.NewReader(make([]byte, 11)), "a.png", "image/png", dir, 10)
	if !errors.Is(err, ErrTooLarge) {
		t.Fatalf("ожидалась ErrTooLarge, получено %v", err)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("временный файл не удалён: найдено %d файлов", len(entries))
	}
}

func TestRemove_Idempotent(t *testing.T) {
	u, err := Stage(strings.NewReader("x"), "a.jpg", "", t.TempDir(), 0)
	if err != nil {
		t.Fatalf("ошибка staging: %v", err)
	}

	if err := u.Remove(); err != nil {
		t.Fatalf("ошибка удаления: %v", err)
	}
	if err := u.Remove(); err != nil {
		t.Errorf("повторное удаление должно быть безопасным: %v", err)
	}
	if _, err := os.Stat(u.Path); !os.IsNotExist(err) {
		t.Error("временный файл не удалён")
	}
}
