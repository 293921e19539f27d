package artifacts

import (
	"encoding/base64"
	"log/slog"
	"os"
	"path/filepath"
)

// Scan enumerates the regular files directly under dir and returns a record
// for each. Files whose names appear in prior are marked IsNew=false; image
// files get their content base64-encoded inline. Larger binaries are left to
// the single-file fetch path to keep the default payload small.
//
// The returned order is whatever the filesystem enumeration yields; callers
// must not depend on it. A failure to read one file is logged and that file
// is omitted; the scan itself never fails.
func Scan(dir string, prior map[string]struct{}) []FileRecord {
	entries, err := os.ReadDir(dir)
	if err != nil {
		slog.Error("scanning workspace", "dir", dir, "error", err)
		return nil
	}

	var files []FileRecord
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			// Raced with a concurrent deletion, most likely.
			slog.Warn("stat during scan", "file", entry.Name(), "error", err)
			continue
		}
		if !info.Mode().IsRegular() {
			continue
		}

		name := entry.Name()
		_, existed := prior[name]
		rec := FileRecord{
			Filename: name,
			Path:     filepath.Join(dir, name),
			Size:     info.Size(),
			Type:     Classify(filepath.Ext(name)),
			IsNew:    !existed,
		}

		if rec.Type == TypeImage {
			data, err := os.ReadFile(rec.Path)
			if err != nil {
				slog.Warn("reading image during scan", "file", name, "error", err)
				continue
			}
			rec.ContentBase64 = base64.StdEncoding.EncodeToString(data)
		}

		files = append(files, rec)
	}

	return files
}

// Snapshot returns the set of regular-file names currently in dir. It is the
// pre-execution baseline against which Scan classifies files as new.
func Snapshot(dir string) map[string]struct{} {
	names := make(map[string]struct{})
	entries, err := os.ReadDir(dir)
	if err != nil {
		slog.Warn("snapshotting workspace", "dir", dir, "error", err)
		return names
	}
	for _, entry := range entries {
		if entry.Type().IsRegular() {
			names[entry.Name()] = struct{}{}
		}
	}
	return names
}
