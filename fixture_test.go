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
	"math"
	"testing"

	"github.com/OpenPSG/eegset"
	"github.com/stretchr/testify/require"
)

// Fixtures roughly model a small motor-imagery session: three channels,
// four labelled trials of two seconds each.
const (
	fixtureSampleRate = 100.0
	fixtureSamples    = 800
	fixtureTrialLen   = 200
)

var (
	fixtureChannels = []string{"C3", "Cz", "C2"}
	fixtureLabels   = []string{"feet", "left_hand", "right_hand", "tongue"}
)

func makeRecording(t *testing.T, seed int) *eegset.Recording {
	t.Helper()

	data := make([][]float64, len(fixtureChannels))
	for c := range data {
		data[c] = make([]float64, fixtureSamples)
		for i := range data[c] {
			data[c][i] = math.Sin(float64(i)*0.013*float64(c+1)) + 0.1*float64(seed)
		}
	}

	events := make([]eegset.Event, 0, len(fixtureLabels))
	for i, label := range fixtureLabels {
		events = append(events, eegset.Event{
			Onset: i * fixtureTrialLen,
			Stop:  (i + 1) * fixtureTrialLen,
			Label: label,
		})
	}

	r, err := eegset.NewRecording(fixtureChannels, fixtureSampleRate, data,
		eegset.WithDescription(eegset.Description{
			"subject": seed + 1,
			"session": "A",
			"run":     seed,
		}),
		eegset.WithEvents(events))
	require.NoError(t, err)
	return r
}

func makeConcatRaw(t *testing.T, n int) *eegset.ConcatDataset {
	t.Helper()
	datasets := make([]eegset.Dataset, n)
	for i := range datasets {
		datasets[i] = makeRecording(t, i)
	}
	return eegset.NewConcatDataset(datasets...)
}

func makeConcatWindows(t *testing.T, n int) *eegset.ConcatDataset {
	t.Helper()
	windowed, err := eegset.CreateWindowsFromEvents(makeConcatRaw(t, n), eegset.WindowsFromEventsConfig{})
	require.NoError(t, err)
	return windowed
}

// captureWarnings routes save warnings into a slice so tests can assert on
// their exact count.
func captureWarnings(warns *[]string) eegset.SaveOption {
	return eegset.WithWarningHandler(func(msg string) {
		*warns = append(*warns, msg)
	})
}

// requireSignalsClose compares channel payloads within the EDF 16-bit
// quantization tolerance.
func requireSignalsClose(t *testing.T, want, got [][]float64, tol float64) {
	t.Helper()
	require.Equal(t, len(want), len(got))
	for c := range want {
		require.Equal(t, len(want[c]), len(got[c]), "channel %d length", c)
		for i := range want[c] {
			require.InDelta(t, want[c][i], got[c][i], tol, "channel %d sample %d", c, i)
		}
	}
}
