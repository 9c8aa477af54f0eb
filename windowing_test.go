// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package eegset_test

import (
	"testing"

	"github.com/OpenPSG/eegset"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateWindowsFromEvents(t *testing.T) {
	c := makeConcatRaw(t, 2)
	windowed, err := eegset.CreateWindowsFromEvents(c, eegset.WindowsFromEventsConfig{})
	require.NoError(t, err)

	require.Equal(t, 2, windowed.NumDatasets())
	for i := 0; i < windowed.NumDatasets(); i++ {
		w := windowed.At(i).(*eegset.WindowsRecording)

		// One window per trial, size inferred from the trial length.
		assert.Equal(t, len(fixtureLabels), w.Len())
		assert.Equal(t, fixtureTrialLen, w.WindowSize())

		// Targets follow the mapping inferred from the sorted labels.
		assert.Equal(t, []int{0, 1, 2, 3}, w.Targets())

		meta := w.Meta()
		for j, m := range meta {
			assert.Equal(t, 0, m.WindowInTrial)
			assert.Equal(t, j*fixtureTrialLen, m.StartInTrial)
			assert.Equal(t, (j+1)*fixtureTrialLen, m.StopInTrial)
		}

		// Window payloads are exact slices of the source signal.
		src, err := c.At(i).(*eegset.Recording).Data()
		require.NoError(t, err)
		win, _, _, err := w.Window(1)
		require.NoError(t, err)
		require.Equal(t, src[0][fixtureTrialLen:2*fixtureTrialLen], win[0])

		// The windowed dataset inherits its source's description.
		assert.Equal(t, c.At(i).Description(), w.Description())
	}
}

func TestCreateWindowsFromEventsStride(t *testing.T) {
	c := makeConcatRaw(t, 1)
	windowed, err := eegset.CreateWindowsFromEvents(c, eegset.WindowsFromEventsConfig{
		WindowSizeSamples:   80,
		WindowStrideSamples: 50,
	})
	require.NoError(t, err)

	// Per 200-sample trial: full windows at 0, 50 and 100, plus a final
	// window shifted back to end at the trial boundary.
	w := windowed.At(0).(*eegset.WindowsRecording)
	assert.Equal(t, 4*len(fixtureLabels), w.Len())

	meta := w.Meta()
	assert.Equal(t, []int{0, 50, 100, 120}, []int{
		meta[0].StartInTrial, meta[1].StartInTrial, meta[2].StartInTrial, meta[3].StartInTrial,
	})
	assert.Equal(t, 3, meta[3].WindowInTrial)
}

func TestCreateWindowsFromEventsDropLastWindow(t *testing.T) {
	c := makeConcatRaw(t, 1)
	windowed, err := eegset.CreateWindowsFromEvents(c, eegset.WindowsFromEventsConfig{
		WindowSizeSamples:   80,
		WindowStrideSamples: 50,
		DropLastWindow:      true,
	})
	require.NoError(t, err)
	assert.Equal(t, 3*len(fixtureLabels), windowed.At(0).(*eegset.WindowsRecording).Len())
}

func TestCreateWindowsFromEventsExplicitMapping(t *testing.T) {
	c := makeConcatRaw(t, 1)
	windowed, err := eegset.CreateWindowsFromEvents(c, eegset.WindowsFromEventsConfig{
		Mapping: map[string]int{"feet": 10, "left_hand": 11, "right_hand": 12, "tongue": 13},
	})
	require.NoError(t, err)
	assert.Equal(t, []int{10, 11, 12, 13}, windowed.At(0).(*eegset.WindowsRecording).Targets())

	_, err = eegset.CreateWindowsFromEvents(c, eegset.WindowsFromEventsConfig{
		Mapping: map[string]int{"feet": 0},
	})
	assert.ErrorContains(t, err, "missing from mapping")
}

func TestCreateWindowsFromEventsUnequalTrials(t *testing.T) {
	data := [][]float64{make([]float64, 300)}
	r, err := eegset.NewRecording([]string{"C3"}, 100, data, eegset.WithEvents([]eegset.Event{
		{Onset: 0, Stop: 100, Label: "a"},
		{Onset: 100, Stop: 300, Label: "b"},
	}))
	require.NoError(t, err)

	_, err = eegset.CreateWindowsFromEvents(eegset.NewConcatDataset(r), eegset.WindowsFromEventsConfig{})
	assert.ErrorContains(t, err, "explicit window size")
}

func TestCreateWindowsFromEventsRequiresEvents(t *testing.T) {
	data := [][]float64{make([]float64, 100)}
	r, err := eegset.NewRecording([]string{"C3"}, 100, data)
	require.NoError(t, err)

	_, err = eegset.CreateWindowsFromEvents(eegset.NewConcatDataset(r), eegset.WindowsFromEventsConfig{})
	assert.ErrorContains(t, err, "no events")
}

func TestCreateFixedLengthWindows(t *testing.T) {
	c := makeConcatRaw(t, 1)
	windowed, err := eegset.CreateFixedLengthWindows(c, eegset.FixedLengthWindowsConfig{
		WindowSizeSamples: 300,
	})
	require.NoError(t, err)

	// 800 samples, size and stride 300: windows at 0 and 300, plus one
	// shifted back to end at the last sample.
	w := windowed.At(0).(*eegset.WindowsRecording)
	require.Equal(t, 3, w.Len())
	meta := w.Meta()
	assert.Equal(t, 0, meta[0].StartInTrial)
	assert.Equal(t, 300, meta[1].StartInTrial)
	assert.Equal(t, fixtureSamples-300, meta[2].StartInTrial)
	assert.Equal(t, []int{-1, -1, -1}, w.Targets())

	dropped, err := eegset.CreateFixedLengthWindows(c, eegset.FixedLengthWindowsConfig{
		WindowSizeSamples: 300,
		DropLastWindow:    true,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, dropped.At(0).(*eegset.WindowsRecording).Len())
}

func TestWindowAccess(t *testing.T) {
	w := makeConcatWindows(t, 1).At(0).(*eegset.WindowsRecording)

	win, target, crop, err := w.Window(2)
	require.NoError(t, err)
	assert.Equal(t, 2, target)
	assert.Equal(t, [3]int{0, 2 * fixtureTrialLen, 3 * fixtureTrialLen}, crop)
	assert.Len(t, win, len(fixtureChannels))

	_, _, _, err = w.Window(99)
	assert.ErrorContains(t, err, "out of range")
}
