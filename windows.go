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
	"sync"
)

// WindowsRecording is a windowed derivative of a continuous recording:
// a sequence of uniform-length windows cut out of the source signal,
// each with its own position and decoding target.
type WindowsRecording struct {
	channelNames []string
	sampleRate   float64
	windowSize   int
	meta         []WindowMeta
	desc         Description
	preprocLog   []Op
	windowLog    []Op

	mu      sync.Mutex
	windows [][][]float64 // windows x channels x samples, nil until loaded
	path    string        // backing EDF file, empty for in-memory recordings
}

// NewWindowsRecording creates an in-memory windowed recording. All windows
// must have the same number of channels and samples, and there must be one
// WindowMeta per window.
func NewWindowsRecording(channelNames []string, sampleRate float64, windows [][][]float64, meta []WindowMeta, opts ...RecordingOption) (*WindowsRecording, error) {
	if len(windows) != len(meta) {
		return nil, fmt.Errorf("expected %d window metadata entries, got %d", len(windows), len(meta))
	}
	if len(windows) == 0 {
		return nil, fmt.Errorf("windows recording must have at least one window")
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %g", sampleRate)
	}
	size := 0
	if len(windows[0]) > 0 {
		size = len(windows[0][0])
	}
	for i, win := range windows {
		if len(win) != len(channelNames) {
			return nil, fmt.Errorf("window %d has %d channels, expected %d", i, len(win), len(channelNames))
		}
		for j, ch := range win {
			if len(ch) != size {
				return nil, fmt.Errorf("window %d channel %q has %d samples, expected %d", i, channelNames[j], len(ch), size)
			}
		}
	}

	// Reuse the Recording options for description, start time, etc.
	var carrier Recording
	for _, opt := range opts {
		opt(&carrier)
	}
	desc := carrier.desc
	if desc == nil {
		desc = Description{}
	}

	return &WindowsRecording{
		channelNames: append([]string(nil), channelNames...),
		sampleRate:   sampleRate,
		windowSize:   size,
		meta:         append([]WindowMeta(nil), meta...),
		desc:         desc,
		windows:      windows,
	}, nil
}

// newLazyWindowsRecording creates a windowed recording whose payload stays
// in the given EDF file until Windows is first called.
func newLazyWindowsRecording(path string, channelNames []string, sampleRate float64, windowSize int, meta []WindowMeta) *WindowsRecording {
	return &WindowsRecording{
		channelNames: channelNames,
		sampleRate:   sampleRate,
		windowSize:   windowSize,
		meta:         meta,
		desc:         Description{},
		path:         path,
	}
}

// ChannelNames returns the channel names in signal order.
func (w *WindowsRecording) ChannelNames() []string {
	return append([]string(nil), w.channelNames...)
}

// NumChannels returns the number of channels.
func (w *WindowsRecording) NumChannels() int { return len(w.channelNames) }

// SampleRate returns the sampling frequency in Hz.
func (w *WindowsRecording) SampleRate() float64 { return w.sampleRate }

// WindowSize returns the number of samples per window.
func (w *WindowsRecording) WindowSize() int { return w.windowSize }

// Len returns the number of windows.
func (w *WindowsRecording) Len() int { return len(w.meta) }

// Meta returns the per-window metadata in window order.
func (w *WindowsRecording) Meta() []WindowMeta { return append([]WindowMeta(nil), w.meta...) }

// Targets returns the decoding target of each window.
func (w *WindowsRecording) Targets() []int {
	targets := make([]int, len(w.meta))
	for i, m := range w.meta {
		targets[i] = m.Target
	}
	return targets
}

// Description returns the metadata record of the recording.
func (w *WindowsRecording) Description() Description { return w.desc }

// SetDescription replaces the metadata record of the recording.
func (w *WindowsRecording) SetDescription(desc Description) { w.desc = desc }

// PreprocLog returns the ordered log of preprocessing operations applied
// after windowing.
func (w *WindowsRecording) PreprocLog() []Op { return append([]Op(nil), w.preprocLog...) }

func (w *WindowsRecording) logPreproc(op Op) { w.preprocLog = append(w.preprocLog, op) }

// WindowLog returns the ordered log of window-construction parameters.
func (w *WindowsRecording) WindowLog() []Op { return append([]Op(nil), w.windowLog...) }

// Loaded reports whether the payload is resident in memory.
func (w *WindowsRecording) Loaded() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.windows != nil
}

// Windows returns the windows x channels x samples payload, reading it from
// the backing file on first access. The returned slices are the recording's
// own storage; callers must not modify them.
func (w *WindowsRecording) Windows() ([][][]float64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.windows == nil {
		data, err := readSignalData(w.path, len(w.channelNames), len(w.meta)*w.windowSize)
		if err != nil {
			return nil, fmt.Errorf("error loading windows from %s: %w", w.path, err)
		}
		// Split the continuous per-channel data back into windows.
		windows := make([][][]float64, len(w.meta))
		for i := range windows {
			win := make([][]float64, len(w.channelNames))
			for c := range win {
				win[c] = data[c][i*w.windowSize : (i+1)*w.windowSize]
			}
			windows[i] = win
		}
		w.windows = windows
	}
	return w.windows, nil
}

// Window returns a single window's channels x samples payload, its target
// and its (window-in-trial, start, stop) position.
func (w *WindowsRecording) Window(i int) ([][]float64, int, [3]int, error) {
	if i < 0 || i >= len(w.meta) {
		return nil, 0, [3]int{}, fmt.Errorf("window index %d out of range [0, %d)", i, len(w.meta))
	}
	windows, err := w.Windows()
	if err != nil {
		return nil, 0, [3]int{}, err
	}
	m := w.meta[i]
	return windows[i], m.Target, [3]int{m.WindowInTrial, m.StartInTrial, m.StopInTrial}, nil
}

// setWindows replaces the payload, used by preprocessors.
func (w *WindowsRecording) setWindows(windows [][][]float64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.windows = windows
	if len(windows) > 0 && len(windows[0]) > 0 {
		w.windowSize = len(windows[0][0])
	}
	w.path = ""
}
