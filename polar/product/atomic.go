package product

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Batch stages output files of one run and commits them together. Until
// Finish is called, Rollback returns every destination to its state before
// the batch touched it: new files are removed and replaced files restored.
type Batch struct {
	files []*stagedFile
	done  bool
}

type stagedFile struct {
	dest   string
	tmp    string // staged content, empty once placed or for guarded paths
	backup string // previous content set aside, empty when dest did not exist
	placed bool
}

// Stage writes the content of dest to a temporary file next to it. dest
// itself is untouched until Commit.
func (b *Batch) Stage(dest string, write func(w io.Writer) error) error {
	tmp, err := writeTemp(dest, write)
	if err != nil {
		return err
	}
	b.files = append(b.files, &stagedFile{dest: dest, tmp: tmp})
	return nil
}

// Guard sets aside any existing file at dest so an external program may
// write it. Rollback removes what was written and restores the original.
func (b *Batch) Guard(dest string) error {
	f := &stagedFile{dest: dest}
	if err := f.place(); err != nil {
		return err
	}
	b.files = append(b.files, f)
	return nil
}

// Commit moves every staged file into place. On failure the files already
// placed stay placed; the caller rolls back.
func (b *Batch) Commit() error {
	for _, f := range b.files {
		if f.placed {
			continue
		}
		if err := f.place(); err != nil {
			return err
		}
	}
	return nil
}

// Rollback discards staged files and undoes committed ones. It is a no-op
// after Finish.
func (b *Batch) Rollback() error {
	if b.done {
		return nil
	}
	b.done = true
	var errs []error
	for i := len(b.files) - 1; i >= 0; i-- {
		f := b.files[i]
		if f.tmp != "" {
			_ = os.Remove(f.tmp)
		}
		if !f.placed {
			continue
		}
		if err := os.Remove(f.dest); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, fmt.Errorf("removing %s: %w", f.dest, err))
			continue
		}
		if f.backup != "" {
			if err := os.Rename(f.backup, f.dest); err != nil {
				errs = append(errs, fmt.Errorf("restoring %s: %w", f.dest, err))
			}
		}
	}
	return errors.Join(errs...)
}

// Finish keeps the committed files and drops the set-aside originals.
func (b *Batch) Finish() {
	if b.done {
		return
	}
	b.done = true
	for _, f := range b.files {
		if f.tmp != "" {
			_ = os.Remove(f.tmp)
		}
		if f.backup != "" {
			_ = os.Remove(f.backup)
		}
	}
}

// Paths returns the destinations handled by the batch, in staging order.
func (b *Batch) Paths() []string {
	paths := make([]string, len(b.files))
	for i, f := range b.files {
		paths[i] = f.dest
	}
	return paths
}

// place sets aside the current dest and moves the staged content in.
func (f *stagedFile) place() error {
	if err := f.setAside(); err != nil {
		return err
	}
	if f.tmp != "" {
		if err := os.Rename(f.tmp, f.dest); err != nil {
			if f.backup != "" {
				_ = os.Rename(f.backup, f.dest)
				f.backup = ""
			}
			return fmt.Errorf("replacing %s: %w", f.dest, err)
		}
		f.tmp = ""
		_ = syncDir(filepath.Dir(f.dest))
	}
	f.placed = true
	return nil
}

func (f *stagedFile) setAside() error {
	if _, err := os.Lstat(f.dest); errors.Is(err, os.ErrNotExist) {
		return nil
	} else if err != nil {
		return fmt.Errorf("inspecting %s: %w", f.dest, err)
	}
	reserved, err := os.CreateTemp(filepath.Dir(f.dest), ".specpol-bak-*")
	if err != nil {
		return fmt.Errorf("reserving backup of %s: %w", f.dest, err)
	}
	backup := reserved.Name()
	_ = reserved.Close()
	if err := os.Rename(f.dest, backup); err != nil {
		_ = os.Remove(backup)
		return fmt.Errorf("setting aside %s: %w", f.dest, err)
	}
	f.backup = backup
	return nil
}

// CommitFiles stages files with stage and commits them as one batch. On
// failure no destination is changed.
func CommitFiles(stage func(b *Batch) error) error {
	b := &Batch{}
	defer func() { _ = b.Rollback() }()
	if err := stage(b); err != nil {
		return err
	}
	if err := b.Commit(); err != nil {
		return err
	}
	b.Finish()
	return nil
}

// writeFileAtomic writes through a temporary file in the destination
// directory and renames it into place. On failure no file is left at dest.
func writeFileAtomic(dest string, write func(w io.Writer) error) error {
	return CommitFiles(func(b *Batch) error {
		return b.Stage(dest, write)
	})
}

// writeTemp writes and syncs a temporary file in dest's directory and
// returns its path.
func writeTemp(dest string, write func(w io.Writer) error) (string, error) {
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".specpol-*")
	if err != nil {
		return "", fmt.Errorf("creating temporary file: %w", err)
	}
	tmpPath := tmp.Name()
	_ = os.Chmod(tmpPath, 0o644)

	bw := bufio.NewWriter(tmp)
	if err := write(bw); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return "", err
	}
	if err := bw.Flush(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("flushing %s: %w", dest, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("syncing %s: %w", dest, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("closing %s: %w", dest, err)
	}
	return tmpPath, nil
}

// syncDir best-effort fsyncs the parent directory to persist the rename.
func syncDir(dir string) error {
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	return f.Sync()
}
