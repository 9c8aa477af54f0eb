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
	"fmt"
	"runtime"
	"slices"

	"golang.org/x/sync/errgroup"
)

// Preprocessor is a named signal operation. Applying it to a dataset also
// appends its name and arguments to the dataset's preprocessing log, so a
// saved dataset records how it was produced.
type Preprocessor struct {
	Name   string
	Kwargs Kwargs
	Apply  func(Dataset) error
}

// PreprocessOption configures Preprocess.
type PreprocessOption func(*preprocessOptions)

type preprocessOptions struct {
	parallelism int
}

// WithPreprocParallelism bounds the number of sub-datasets preprocessed
// concurrently. Values below 1 use one worker per CPU.
func WithPreprocParallelism(n int) PreprocessOption {
	return func(o *preprocessOptions) { o.parallelism = n }
}

// Preprocess applies the given preprocessors in order to every sub-dataset
// of the collection, in place. Each sub-dataset is handled independently,
// so the fan-out needs no coordination beyond the worker limit.
func Preprocess(c *ConcatDataset, preprocessors []Preprocessor, opts ...PreprocessOption) error {
	o := &preprocessOptions{parallelism: 1}
	for _, opt := range opts {
		opt(o)
	}
	if o.parallelism < 1 {
		o.parallelism = runtime.GOMAXPROCS(0)
	}

	var g errgroup.Group
	g.SetLimit(o.parallelism)
	for i, ds := range c.datasets {
		i, ds := i, ds
		g.Go(func() error {
			for _, p := range preprocessors {
				if err := p.Apply(ds); err != nil {
					return fmt.Errorf("error applying %s to dataset %d: %w", p.Name, i, err)
				}
				ds.logPreproc(Op{Name: p.Name, Kwargs: p.Kwargs})
			}
			return nil
		})
	}
	return g.Wait()
}

// PickChannels keeps only the named channels, preserving the dataset's
// original channel order.
func PickChannels(names ...string) Preprocessor {
	return Preprocessor{
		Name:   "pick_channels",
		Kwargs: Kwargs{"ch_names": names},
		Apply: func(ds Dataset) error {
			switch ds := ds.(type) {
			case *Recording:
				data, err := ds.Data()
				if err != nil {
					return err
				}
				kept, picked := pickChannelData(ds.channelNames, names, data)
				if len(kept) == 0 {
					return fmt.Errorf("no channels left after picking %v", names)
				}
				ds.channelNames = kept
				ds.setData(picked)
				return nil
			case *WindowsRecording:
				windows, err := ds.Windows()
				if err != nil {
					return err
				}
				var kept []string
				picked := make([][][]float64, len(windows))
				for i, win := range windows {
					kept, picked[i] = pickChannelData(ds.channelNames, names, win)
				}
				if len(kept) == 0 {
					return fmt.Errorf("no channels left after picking %v", names)
				}
				ds.channelNames = kept
				ds.setWindows(picked)
				return nil
			default:
				return fmt.Errorf("unsupported dataset type %T", ds)
			}
		},
	}
}

func pickChannelData(channelNames, wanted []string, data [][]float64) ([]string, [][]float64) {
	var kept []string
	var picked [][]float64
	for i, name := range channelNames {
		if slices.Contains(wanted, name) {
			kept = append(kept, name)
			picked = append(picked, data[i])
		}
	}
	return kept, picked
}

// Scale multiplies every sample by the given factor.
func Scale(factor float64) Preprocessor {
	return Preprocessor{
		Name:   "scale",
		Kwargs: Kwargs{"factor": factor},
		Apply: func(ds Dataset) error {
			switch ds := ds.(type) {
			case *Recording:
				data, err := ds.Data()
				if err != nil {
					return err
				}
				for _, ch := range data {
					for i := range ch {
						ch[i] *= factor
					}
				}
				ds.setData(data)
				return nil
			case *WindowsRecording:
				windows, err := ds.Windows()
				if err != nil {
					return err
				}
				for _, win := range windows {
					for _, ch := range win {
						for i := range ch {
							ch[i] *= factor
						}
					}
				}
				ds.setWindows(windows)
				return nil
			default:
				return fmt.Errorf("unsupported dataset type %T", ds)
			}
		},
	}
}

// Crop restricts a continuous recording to the half-open sample interval
// [start, stop). Events are shifted accordingly; events falling outside
// the interval are dropped. Windowed datasets cannot be cropped.
func Crop(start, stop int) Preprocessor {
	return Preprocessor{
		Name:   "crop",
		Kwargs: Kwargs{"start": start, "stop": stop},
		Apply: func(ds Dataset) error {
			r, ok := ds.(*Recording)
			if !ok {
				return fmt.Errorf("crop is only supported on continuous recordings, got %T", ds)
			}
			data, err := r.Data()
			if err != nil {
				return err
			}
			n := len(data[0])
			if start < 0 || stop > n || start >= stop {
				return fmt.Errorf("crop interval [%d, %d) out of range for %d samples", start, stop, n)
			}
			cropped := make([][]float64, len(data))
			for c := range data {
				cropped[c] = data[c][start:stop]
			}
			var events []Event
			for _, ev := range r.events {
				if ev.Onset < start || ev.Stop > stop {
					continue
				}
				events = append(events, Event{Onset: ev.Onset - start, Stop: ev.Stop - start, Label: ev.Label})
			}
			r.events = events
			r.setData(cropped)
			return nil
		},
	}
}
