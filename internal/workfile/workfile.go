// Package workfile persists the small line-oriented checkpoint files the
// bot keeps between steps and between runs.
package workfile

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var ErrMissing = errors.New("working file missing")

// File is one line-oriented working file. Every write replaces or
// appends to the whole file; there is no partial rewrite.
type File struct {
	Path string
}

func New(path string) *File {
	return &File{Path: path}
}

func (f *File) Name() string {
	return filepath.Base(f.Path)
}

func (f *File) Exists() bool {
	info, err := os.Stat(f.Path)
	return err == nil && !info.IsDir()
}

// Reset deletes the file if present and creates it empty.
func (f *File) Reset() error {
	if err := os.Remove(f.Path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove %s: %w", f.Name(), err)
	}
	if err := os.MkdirAll(filepath.Dir(f.Path), 0755); err != nil {
		return fmt.Errorf("create directory for %s: %w", f.Name(), err)
	}
	file, err := os.Create(f.Path)
	if err != nil {
		return fmt.Errorf("create %s: %w", f.Name(), err)
	}
	return file.Close()
}

func (f *File) AppendLine(line string) error {
	file, err := os.OpenFile(f.Path, os.O_APPEND|os.O_WRONLY, 0644)
	if os.IsNotExist(err) {
		return fmt.Errorf("%w: %s", ErrMissing, f.Path)
	}
	if err != nil {
		return fmt.Errorf("open %s: %w", f.Name(), err)
	}
	if _, err := file.WriteString(line + "\n"); err != nil {
		file.Close()
		return fmt.Errorf("append to %s: %w", f.Name(), err)
	}
	return file.Close()
}

// ReadLines returns every line with the trailing newline removed. Blank
// lines are kept so indices stay stable across Rewrite.
func (f *File) ReadLines() ([]string, error) {
	file, err := os.Open(f.Path)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrMissing, f.Path)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", f.Name(), err)
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, strings.TrimRight(scanner.Text(), "\r"))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", f.Name(), err)
	}
	return lines, nil
}

// Rewrite replaces the whole file with lines through a temp file rename.
func (f *File) Rewrite(lines []string) error {
	var b strings.Builder
	for _, line := range lines {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return f.Write(b.String())
}

// Write replaces the file content verbatim.
func (f *File) Write(content string) error {
	if err := os.MkdirAll(filepath.Dir(f.Path), 0755); err != nil {
		return fmt.Errorf("create directory for %s: %w", f.Name(), err)
	}
	tmp := f.Path + ".tmp"
	if err := os.WriteFile(tmp, []byte(content), 0644); err != nil {
		return fmt.Errorf("write %s: %w", f.Name(), err)
	}
	if err := os.Rename(tmp, f.Path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace %s: %w", f.Name(), err)
	}
	return nil
}

func (f *File) ReadAll() (string, error) {
	data, err := os.ReadFile(f.Path)
	if os.IsNotExist(err) {
		return "", fmt.Errorf("%w: %s", ErrMissing, f.Path)
	}
	if err != nil {
		return "", fmt.Errorf("read %s: %w", f.Name(), err)
	}
	return string(data), nil
}

// NonEmpty drops blank lines.
func NonEmpty(lines []string) []string {
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if strings.TrimSpace(line) != "" {
			out = append(out, line)
		}
	}
	return out
}
