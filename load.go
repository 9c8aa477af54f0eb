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
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"

	"golang.org/x/sync/errgroup"
)

// LoadOption configures Load.
type LoadOption func(*loadOptions)

type loadOptions struct {
	preload     bool
	parallelism int
	ids         []int
}

// WithPreload makes Load read signal payloads eagerly. Without it,
// payloads stay on disk until first accessed.
func WithPreload() LoadOption {
	return func(o *loadOptions) { o.preload = true }
}

// WithParallelism bounds the number of subdirectories read concurrently.
// Values below 1 use one worker per CPU. The default is sequential
// loading; the result is identical either way.
func WithParallelism(n int) LoadOption {
	return func(o *loadOptions) { o.parallelism = n }
}

// WithIDs restricts loading to the given subdirectory indices, in the
// given order. A missing index is an error.
func WithIDs(ids ...int) LoadOption {
	return func(o *loadOptions) { o.ids = append([]int(nil), ids...) }
}

// Load reconstructs a collection previously written by Save: one
// sub-dataset per numbered subdirectory of dir, in ascending index order.
func Load(dir string, opts ...LoadOption) (*ConcatDataset, error) {
	o := &loadOptions{parallelism: 1}
	for _, opt := range opts {
		opt(o)
	}
	if o.parallelism < 1 {
		o.parallelism = runtime.GOMAXPROCS(0)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	found := map[int]struct{}{}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		idx, err := strconv.Atoi(e.Name())
		if err != nil || idx < 0 {
			continue
		}
		found[idx] = struct{}{}
	}
	if len(found) == 0 {
		return nil, fmt.Errorf("directory %s contains no saved datasets", dir)
	}

	var ids []int
	if o.ids != nil {
		ids = o.ids
		for _, idx := range ids {
			if _, ok := found[idx]; !ok {
				return nil, fmt.Errorf("dataset subdirectory %d not found in %s", idx, dir)
			}
		}
	} else {
		for idx := range found {
			ids = append(ids, idx)
		}
		sort.Ints(ids)
		for i, idx := range ids {
			if i != idx {
				return nil, fmt.Errorf("dataset subdirectories in %s are not numbered contiguously from 0: missing %d", dir, i)
			}
		}
	}

	// Fan the per-subdirectory loads out over a bounded worker pool and
	// collate the results back into id order.
	datasets := make([]Dataset, len(ids))
	var g errgroup.Group
	g.SetLimit(o.parallelism)
	for i, idx := range ids {
		i, idx := i, idx
		g.Go(func() error {
			ds, err := loadDataset(dir, idx, o.preload)
			if err != nil {
				return fmt.Errorf("error loading dataset %d: %w", idx, err)
			}
			datasets[i] = ds
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return NewConcatDataset(datasets...), nil
}

// loadDataset reconstructs one sub-dataset from its subdirectory.
func loadDataset(dir string, idx int, preload bool) (Dataset, error) {
	sub := filepath.Join(dir, strconv.Itoa(idx))

	var desc Description
	if err := readJSONFile(filepath.Join(sub, descriptionFile), &desc); err != nil {
		return nil, err
	}

	var preprocLog []Op
	if err := readOptionalJSONFile(filepath.Join(sub, preprocKwargsFile), &preprocLog); err != nil {
		return nil, err
	}

	rawPath := filepath.Join(sub, fmt.Sprintf("%d-raw.edf", idx))
	epoPath := filepath.Join(sub, fmt.Sprintf("%d-epo.edf", idx))

	if _, err := os.Stat(rawPath); err == nil {
		info, err := probeSignalFile(rawPath)
		if err != nil {
			return nil, err
		}
		r := newLazyRecording(rawPath, info.channelNames, info.sampleRate, info.totalSamples(), info.startTime)
		if desc != nil {
			r.desc = desc
		}
		r.preprocLog = preprocLog
		if err := readOptionalJSONFile(filepath.Join(sub, eventsFile), &r.events); err != nil {
			return nil, err
		}
		if preload {
			if _, err := r.Data(); err != nil {
				return nil, err
			}
		}
		return r, nil
	}

	if _, err := os.Stat(epoPath); err == nil {
		info, err := probeSignalFile(epoPath)
		if err != nil {
			return nil, err
		}
		var meta []WindowMeta
		if err := readJSONFile(filepath.Join(sub, windowsMetaFile), &meta); err != nil {
			return nil, err
		}
		if len(meta) != info.dataRecords {
			return nil, fmt.Errorf("window metadata lists %d windows, signal file holds %d", len(meta), info.dataRecords)
		}
		w := newLazyWindowsRecording(epoPath, info.channelNames, info.sampleRate, info.samplesPerRecord, meta)
		if desc != nil {
			w.desc = desc
		}
		w.preprocLog = preprocLog
		if err := readOptionalJSONFile(filepath.Join(sub, windowKwargsFile), &w.windowLog); err != nil {
			return nil, err
		}
		if preload {
			if _, err := w.Windows(); err != nil {
				return nil, err
			}
		}
		return w, nil
	}

	return nil, fmt.Errorf("subdirectory %s contains no signal file", sub)
}

func readJSONFile(path string, v any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("error parsing %s: %w", path, err)
	}
	return nil
}

func readOptionalJSONFile(path string, v any) error {
	err := readJSONFile(path, v)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}
