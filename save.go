// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package eegset

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
)

const (
	descriptionFile   = "description.json"
	preprocKwargsFile = "raw_preproc_kwargs.json"
	windowKwargsFile  = "window_kwargs.json"
	windowsMetaFile   = "windows.json"
	eventsFile        = "events.json"
)

// SaveOption configures Save, SaveFlat and Load.
type SaveOption func(*saveOptions)

type saveOptions struct {
	overwrite bool
	offset    int
	warn      func(string)
}

// WithOverwrite allows Save to replace existing dataset subdirectories.
func WithOverwrite() SaveOption {
	return func(o *saveOptions) { o.overwrite = true }
}

// WithOffset shifts the subdirectory index of the first saved sub-dataset,
// used to append a collection to a previously saved one.
func WithOffset(offset int) SaveOption {
	return func(o *saveOptions) { o.offset = offset }
}

// WithWarningHandler redirects non-fatal warnings. The default handler
// logs them through slog.
func WithWarningHandler(fn func(msg string)) SaveOption {
	return func(o *saveOptions) { o.warn = fn }
}

func newSaveOptions(opts []SaveOption) *saveOptions {
	o := &saveOptions{
		warn: func(msg string) { slog.Warn(msg) },
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Save writes the collection to dir, one numbered subdirectory per
// sub-dataset: dir/<offset+i>/ holds the sub-dataset's description, its
// signal payload as an EDF file, and its preprocessing and windowing logs.
//
// An existing target subdirectory is an error wrapping fs.ErrExist unless
// WithOverwrite is given, in which case it is replaced. Unrelated content
// in dir, or overwriting with fewer sub-datasets than previously saved,
// produces a non-fatal warning.
func (c *ConcatDataset) Save(dir string, opts ...SaveOption) error {
	o := newSaveOptions(opts)

	if c.NumDatasets() == 0 {
		return fmt.Errorf("expect at least one dataset to save")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	existing, unrelated, err := scanSaveDir(dir)
	if err != nil {
		return err
	}
	if unrelated {
		o.warn(fmt.Sprintf("chosen directory %s contains other subdirectories or files", dir))
	}

	for i, ds := range c.datasets {
		idx := o.offset + i
		sub := filepath.Join(dir, strconv.Itoa(idx))
		if _, err := os.Stat(sub); err == nil {
			if !o.overwrite {
				return fmt.Errorf("subdirectory %s already exists, rerun with overwrite to replace it: %w", sub, fs.ErrExist)
			}
			if err := os.RemoveAll(sub); err != nil {
				return err
			}
		}
		if err := os.MkdirAll(sub, 0o755); err != nil {
			return err
		}
		if err := saveDataset(sub, idx, ds); err != nil {
			return fmt.Errorf("error saving dataset %d: %w", idx, err)
		}
	}

	if o.overwrite && o.offset+len(c.datasets) < existing {
		o.warn(fmt.Sprintf("the number of saved datasets (%d) does not match the number of existing subdirectories (%d); "+
			"the leftover subdirectories no longer belong to this dataset", o.offset+len(c.datasets), existing))
	}
	return nil
}

// saveDataset writes one sub-dataset into its subdirectory.
func saveDataset(sub string, idx int, ds Dataset) error {
	if err := writeJSONFile(filepath.Join(sub, descriptionFile), ds.Description()); err != nil {
		return err
	}

	switch ds := ds.(type) {
	case *Recording:
		if err := writeRawSignalFile(filepath.Join(sub, fmt.Sprintf("%d-raw.edf", idx)), ds); err != nil {
			return err
		}
		// Plain EDF carries no annotations, so trial events get their own
		// sidecar, like the window metadata does.
		if len(ds.events) > 0 {
			if err := writeJSONFile(filepath.Join(sub, eventsFile), ds.events); err != nil {
				return err
			}
		}
		if len(ds.preprocLog) > 0 {
			if err := writeJSONFile(filepath.Join(sub, preprocKwargsFile), ds.preprocLog); err != nil {
				return err
			}
		}
	case *WindowsRecording:
		if err := writeWindowsSignalFile(filepath.Join(sub, fmt.Sprintf("%d-epo.edf", idx)), ds); err != nil {
			return err
		}
		if err := writeJSONFile(filepath.Join(sub, windowsMetaFile), ds.meta); err != nil {
			return err
		}
		if len(ds.windowLog) > 0 {
			if err := writeJSONFile(filepath.Join(sub, windowKwargsFile), ds.windowLog); err != nil {
				return err
			}
		}
		if len(ds.preprocLog) > 0 {
			if err := writeJSONFile(filepath.Join(sub, preprocKwargsFile), ds.preprocLog); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("unsupported dataset type %T", ds)
	}
	return nil
}

// scanSaveDir counts the numbered subdirectories forming a contiguous
// 0..k-1 prefix (a previous save) and reports whether the directory holds
// anything else.
func scanSaveDir(dir string) (numbered int, unrelated bool, err error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, false, err
	}

	indices := map[int]struct{}{}
	for _, e := range entries {
		idx, err := strconv.Atoi(e.Name())
		if !e.IsDir() || err != nil || idx < 0 {
			unrelated = true
			continue
		}
		indices[idx] = struct{}{}
	}

	for {
		if _, ok := indices[numbered]; !ok {
			break
		}
		numbered++
	}
	if numbered != len(indices) {
		// Numbered directories that are not a contiguous prefix were not
		// written by a previous save.
		unrelated = true
	}
	return numbered, unrelated, nil
}

// CheckSaveDirEmpty fails with an error wrapping fs.ErrExist if dir
// already contains a saved dataset, as a guard before a first-time save.
func CheckSaveDirEmpty(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, err := strconv.Atoi(e.Name()); err != nil {
			continue
		}
		if _, err := os.Stat(filepath.Join(dir, e.Name(), descriptionFile)); err == nil {
			return fmt.Errorf("directory %s already contains a saved dataset (subdirectory %s): %w", dir, e.Name(), fs.ErrExist)
		}
	}
	return nil
}

// SaveFlat writes the collection into dir without per-recording
// subdirectories: dir/description.json plus dir/<i>-raw.edf per recording.
// Windowed sub-datasets are not supported.
//
// Deprecated: SaveFlat exists for backwards compatibility with datasets
// saved by early versions of this library and always emits a warning.
// Use Save instead.
func (c *ConcatDataset) SaveFlat(dir string, opts ...SaveOption) error {
	o := newSaveOptions(opts)
	o.warn("this function only exists for backwards compatibility purposes, do not use it for new datasets")

	for _, ds := range c.datasets {
		if _, ok := ds.(*WindowsRecording); ok {
			return fmt.Errorf("flat save is not implemented for windows datasets")
		}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	descPath := filepath.Join(dir, descriptionFile)
	if _, err := os.Stat(descPath); err == nil && !o.overwrite {
		return fmt.Errorf("dataset description %s already exists: %w", descPath, fs.ErrExist)
	}
	table := c.DescriptionTable()
	rows := make([]Description, table.Len())
	for i := range rows {
		rows[i] = table.Row(i)
	}
	if err := writeJSONFile(descPath, rows); err != nil {
		return err
	}

	for i, ds := range c.datasets {
		r := ds.(*Recording)
		if err := writeRawSignalFile(filepath.Join(dir, fmt.Sprintf("%d-raw.edf", i)), r); err != nil {
			return fmt.Errorf("error saving recording %d: %w", i, err)
		}
	}
	return nil
}

func writeJSONFile(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		f.Close()
		return fmt.Errorf("error writing %s: %w", path, err)
	}
	return f.Close()
}
