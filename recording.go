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
	"time"
)

// Recording is a continuous multi-channel recording: one channels x samples
// payload plus its metadata and preprocessing history. The payload may be
// backed by an EDF file on disk and read on first access.
type Recording struct {
	channelNames []string
	sampleRate   float64
	startTime    time.Time
	desc         Description
	events       []Event
	preprocLog   []Op

	mu   sync.Mutex
	data [][]float64 // channels x samples, nil until loaded
	n    int         // sample count, authoritative while data is nil
	path string      // backing EDF file, empty for in-memory recordings
}

// RecordingOption configures a Recording at construction time.
type RecordingOption func(*Recording)

// WithDescription attaches a metadata record to the recording.
func WithDescription(desc Description) RecordingOption {
	return func(r *Recording) { r.desc = desc }
}

// WithEvents attaches labelled trial events to the recording.
func WithEvents(events []Event) RecordingOption {
	return func(r *Recording) { r.events = append([]Event(nil), events...) }
}

// WithStartTime sets the acquisition start time of the recording.
func WithStartTime(t time.Time) RecordingOption {
	return func(r *Recording) { r.startTime = t }
}

// NewRecording creates an in-memory recording from channels x samples data.
// All channels must have the same length and there must be one channel name
// per channel.
func NewRecording(channelNames []string, sampleRate float64, data [][]float64, opts ...RecordingOption) (*Recording, error) {
	if len(channelNames) != len(data) {
		return nil, fmt.Errorf("expected %d channels of data, got %d", len(channelNames), len(data))
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("recording must have at least one channel")
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %g", sampleRate)
	}
	n := len(data[0])
	for i, ch := range data {
		if len(ch) != n {
			return nil, fmt.Errorf("channel %q has %d samples, expected %d", channelNames[i], len(ch), n)
		}
	}

	r := &Recording{
		channelNames: append([]string(nil), channelNames...),
		sampleRate:   sampleRate,
		desc:         Description{},
		data:         data,
		n:            n,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// newLazyRecording creates a recording whose payload stays in the given EDF
// file until Data is first called.
func newLazyRecording(path string, channelNames []string, sampleRate float64, n int, startTime time.Time) *Recording {
	return &Recording{
		channelNames: channelNames,
		sampleRate:   sampleRate,
		startTime:    startTime,
		desc:         Description{},
		n:            n,
		path:         path,
	}
}

// ChannelNames returns the channel names in signal order.
func (r *Recording) ChannelNames() []string {
	return append([]string(nil), r.channelNames...)
}

// NumChannels returns the number of channels.
func (r *Recording) NumChannels() int { return len(r.channelNames) }

// SampleRate returns the sampling frequency in Hz.
func (r *Recording) SampleRate() float64 { return r.sampleRate }

// StartTime returns the acquisition start time, zero if unknown.
func (r *Recording) StartTime() time.Time { return r.startTime }

// Events returns the labelled trial events of the recording.
func (r *Recording) Events() []Event { return append([]Event(nil), r.events...) }

// Len returns the number of samples per channel.
func (r *Recording) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.n
}

// Description returns the metadata record of the recording.
func (r *Recording) Description() Description { return r.desc }

// SetDescription replaces the metadata record of the recording.
func (r *Recording) SetDescription(desc Description) { r.desc = desc }

// PreprocLog returns the ordered log of preprocessing operations that have
// been applied to the recording.
func (r *Recording) PreprocLog() []Op { return append([]Op(nil), r.preprocLog...) }

func (r *Recording) logPreproc(op Op) { r.preprocLog = append(r.preprocLog, op) }

// Loaded reports whether the payload is resident in memory.
func (r *Recording) Loaded() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.data != nil
}

// Data returns the channels x samples payload, reading it from the backing
// file on first access. The returned slices are the recording's own
// storage; callers must not modify them.
func (r *Recording) Data() ([][]float64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.data == nil {
		data, err := readSignalData(r.path, len(r.channelNames), r.n)
		if err != nil {
			return nil, fmt.Errorf("error loading recording from %s: %w", r.path, err)
		}
		r.data = data
	}
	return r.data, nil
}

// setData replaces the payload and sample count, used by preprocessors.
func (r *Recording) setData(data [][]float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data = data
	if len(data) > 0 {
		r.n = len(data[0])
	} else {
		r.n = 0
	}
	r.path = ""
}
