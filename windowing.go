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
	"sort"
)

// WindowsFromEventsConfig controls how labelled trials are cut into
// windows. The zero value infers the window size from the trial length and
// the label mapping from the labels present in the collection.
type WindowsFromEventsConfig struct {
	TrialStartOffsetSamples int            // Added to each event onset
	TrialStopOffsetSamples  int            // Added to each event stop
	WindowSizeSamples       int            // 0 infers the (uniform) trial length
	WindowStrideSamples     int            // 0 uses the window size
	DropLastWindow          bool           // Drop a trailing partial window instead of shifting it to the trial end
	Mapping                 map[string]int // Label to target, nil infers 0..k-1 over sorted labels
}

// CreateWindowsFromEvents cuts the labelled trials of every continuous
// recording in the collection into uniform windows, producing a new
// collection of windowed recordings. Each result carries its source's
// description and preprocessing log, plus a log of the resolved windowing
// parameters.
func CreateWindowsFromEvents(c *ConcatDataset, cfg WindowsFromEventsConfig) (*ConcatDataset, error) {
	recordings := make([]*Recording, 0, c.NumDatasets())
	for i, ds := range c.datasets {
		r, ok := ds.(*Recording)
		if !ok {
			return nil, fmt.Errorf("dataset %d is %T, windows from events require continuous recordings", i, ds)
		}
		if len(r.events) == 0 {
			return nil, fmt.Errorf("recording %d has no events to window", i)
		}
		recordings = append(recordings, r)
	}

	mapping := cfg.Mapping
	if mapping == nil {
		labels := map[string]struct{}{}
		for _, r := range recordings {
			for _, ev := range r.events {
				labels[ev.Label] = struct{}{}
			}
		}
		sorted := make([]string, 0, len(labels))
		for l := range labels {
			sorted = append(sorted, l)
		}
		sort.Strings(sorted)
		mapping = make(map[string]int, len(sorted))
		for i, l := range sorted {
			mapping[l] = i
		}
	}

	size := cfg.WindowSizeSamples
	out := make([]Dataset, 0, len(recordings))
	for i, r := range recordings {
		data, err := r.Data()
		if err != nil {
			return nil, err
		}
		n := len(data[0])

		var windows [][][]float64
		var meta []WindowMeta
		for _, ev := range r.events {
			target, ok := mapping[ev.Label]
			if !ok {
				return nil, fmt.Errorf("event label %q of recording %d missing from mapping", ev.Label, i)
			}
			start := ev.Onset + cfg.TrialStartOffsetSamples
			stop := ev.Stop + cfg.TrialStopOffsetSamples
			if start < 0 || stop > n || start >= stop {
				return nil, fmt.Errorf("trial [%d, %d) of recording %d out of range for %d samples", start, stop, i, n)
			}
			if size == 0 {
				size = stop - start
			}
			if cfg.WindowSizeSamples == 0 && stop-start != size {
				return nil, fmt.Errorf("trial of %d samples in recording %d, inferred window size is %d; "+
					"set an explicit window size for unequal trials", stop-start, i, size)
			}
			stride := cfg.WindowStrideSamples
			if stride == 0 {
				stride = size
			}

			starts := windowStarts(start, stop, size, stride, cfg.DropLastWindow)
			for j, ws := range starts {
				windows = append(windows, copyWindow(data, ws, ws+size))
				meta = append(meta, WindowMeta{
					WindowInTrial: j,
					StartInTrial:  ws,
					StopInTrial:   ws + size,
					Target:        target,
				})
			}
		}
		if len(windows) == 0 {
			return nil, fmt.Errorf("recording %d produced no windows", i)
		}

		w, err := NewWindowsRecording(r.channelNames, r.sampleRate, windows, meta)
		if err != nil {
			return nil, err
		}
		w.desc = r.desc
		w.preprocLog = append([]Op(nil), r.preprocLog...)
		w.windowLog = []Op{{
			Name: "create_windows_from_events",
			Kwargs: Kwargs{
				"trial_start_offset_samples": cfg.TrialStartOffsetSamples,
				"trial_stop_offset_samples":  cfg.TrialStopOffsetSamples,
				"window_size_samples":        size,
				"window_stride_samples":      cfg.WindowStrideSamples,
				"drop_last_window":           cfg.DropLastWindow,
				"mapping":                    mapping,
			},
		}}
		out = append(out, w)
	}
	return NewConcatDataset(out...), nil
}

// FixedLengthWindowsConfig controls sliding-window extraction over whole
// recordings.
type FixedLengthWindowsConfig struct {
	WindowSizeSamples   int  // Required
	WindowStrideSamples int  // 0 uses the window size
	DropLastWindow      bool // Drop a trailing partial window instead of shifting it to the recording end
}

// CreateFixedLengthWindows slides a fixed-size window over every
// continuous recording in the collection. Windows carry no decoding
// target (-1).
func CreateFixedLengthWindows(c *ConcatDataset, cfg FixedLengthWindowsConfig) (*ConcatDataset, error) {
	if cfg.WindowSizeSamples <= 0 {
		return nil, fmt.Errorf("window size must be positive, got %d", cfg.WindowSizeSamples)
	}
	stride := cfg.WindowStrideSamples
	if stride == 0 {
		stride = cfg.WindowSizeSamples
	}

	out := make([]Dataset, 0, c.NumDatasets())
	for i, ds := range c.datasets {
		r, ok := ds.(*Recording)
		if !ok {
			return nil, fmt.Errorf("dataset %d is %T, fixed-length windows require continuous recordings", i, ds)
		}
		data, err := r.Data()
		if err != nil {
			return nil, err
		}
		n := len(data[0])
		if n < cfg.WindowSizeSamples {
			return nil, fmt.Errorf("recording %d has %d samples, shorter than the %d sample window", i, n, cfg.WindowSizeSamples)
		}

		starts := windowStarts(0, n, cfg.WindowSizeSamples, stride, cfg.DropLastWindow)
		windows := make([][][]float64, 0, len(starts))
		meta := make([]WindowMeta, 0, len(starts))
		for j, ws := range starts {
			windows = append(windows, copyWindow(data, ws, ws+cfg.WindowSizeSamples))
			meta = append(meta, WindowMeta{
				WindowInTrial: j,
				StartInTrial:  ws,
				StopInTrial:   ws + cfg.WindowSizeSamples,
				Target:        -1,
			})
		}

		w, err := NewWindowsRecording(r.channelNames, r.sampleRate, windows, meta)
		if err != nil {
			return nil, err
		}
		w.desc = r.desc
		w.preprocLog = append([]Op(nil), r.preprocLog...)
		w.windowLog = []Op{{
			Name: "create_fixed_length_windows",
			Kwargs: Kwargs{
				"window_size_samples":   cfg.WindowSizeSamples,
				"window_stride_samples": stride,
				"drop_last_window":      cfg.DropLastWindow,
			},
		}}
		out = append(out, w)
	}
	return NewConcatDataset(out...), nil
}

// windowStarts returns the start sample of every window in [start, stop).
// A trailing stretch shorter than a full window is either dropped or
// served by a final window shifted back to end exactly at stop.
func windowStarts(start, stop, size, stride int, dropLast bool) []int {
	var starts []int
	for s := start; s+size <= stop; s += stride {
		starts = append(starts, s)
	}
	if len(starts) == 0 {
		return starts
	}
	last := starts[len(starts)-1]
	if !dropLast && last+size < stop {
		starts = append(starts, stop-size)
	}
	return starts
}

func copyWindow(data [][]float64, start, stop int) [][]float64 {
	win := make([][]float64, len(data))
	for c := range data {
		win[c] = append([]float64(nil), data[c][start:stop]...)
	}
	return win
}
