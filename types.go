// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package eegset

// Kwargs holds the keyword arguments an operation was invoked with. They
// are logged verbatim alongside the saved signal files so that a loaded
// dataset still knows how it was produced.
type Kwargs map[string]any

// Op is one entry of an operation log: the name of a preprocessing or
// window-construction function plus its arguments.
type Op struct {
	Name   string `json:"name"`
	Kwargs Kwargs `json:"kwargs"`
}

// Description is the metadata record attached to a single recording,
// e.g. subject, session and run identifiers. One Description becomes one
// row of a ConcatDataset's combined description table.
type Description map[string]any

// Event marks a labelled trial within a continuous recording.
type Event struct {
	Onset int    `json:"onset"` // Sample index of the trial start
	Stop  int    `json:"stop"`  // Exclusive sample index of the trial end
	Label string `json:"label"` // Event label (e.g. "left_hand")
}

// WindowMeta describes a single extracted window.
type WindowMeta struct {
	WindowInTrial int `json:"i_window_in_trial"` // Position of the window within its trial
	StartInTrial  int `json:"i_start_in_trial"`  // Absolute start sample in the source recording
	StopInTrial   int `json:"i_stop_in_trial"`   // Exclusive absolute stop sample
	Target        int `json:"target"`            // Decoding target, -1 if unknown
}

// Dataset is a single element of a ConcatDataset: either a continuous
// Recording or a WindowsRecording derived from one.
type Dataset interface {
	// Len reports the number of addressable items: samples for a
	// Recording, windows for a WindowsRecording.
	Len() int

	// Description returns the metadata record of the dataset.
	Description() Description

	logPreproc(op Op)
}
