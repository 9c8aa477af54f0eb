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
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/OpenPSG/edf"
)

// maxRecordBytes is the data record ceiling recommended by the EDF
// standard and enforced by the edf writer.
const maxRecordBytes = 61440

// recordingIDPrefix marks EDF files written by this package. The recording
// identification field carries the exact sampling frequency, which the EDF
// header itself cannot (record durations are whole seconds).
const recordingIDPrefix = "eegset"

// writeRawSignalFile writes a continuous recording to an EDF file, one
// signal per channel.
func writeRawSignalFile(path string, r *Recording) error {
	data, err := r.Data()
	if err != nil {
		return err
	}
	n := len(data[0])
	spr, err := rawSamplesPerRecord(n, len(data))
	if err != nil {
		return err
	}
	return writeSignalFile(path, r.channelNames, r.sampleRate, r.startTime, spr, n/spr,
		func(rec int) [][]float64 {
			out := make([][]float64, len(data))
			for c := range data {
				out[c] = data[c][rec*spr : (rec+1)*spr]
			}
			return out
		})
}

// writeWindowsSignalFile writes a windowed recording to an EDF file, one
// data record per window.
func writeWindowsSignalFile(path string, w *WindowsRecording) error {
	windows, err := w.Windows()
	if err != nil {
		return err
	}
	if w.windowSize*len(w.channelNames)*2 > maxRecordBytes {
		return fmt.Errorf("window of %d samples x %d channels exceeds the %d byte EDF record limit",
			w.windowSize, len(w.channelNames), maxRecordBytes)
	}
	return writeSignalFile(path, w.channelNames, w.sampleRate, time.Time{}, w.windowSize, len(windows),
		func(rec int) [][]float64 { return windows[rec] })
}

func writeSignalFile(path string, channelNames []string, rate float64, start time.Time, spr, nrec int, record func(int) [][]float64) error {
	// Per-channel calibration from the actual data range.
	pmin := make([]float64, len(channelNames))
	pmax := make([]float64, len(channelNames))
	for c := range channelNames {
		pmin[c] = math.Inf(1)
		pmax[c] = math.Inf(-1)
	}
	for rec := 0; rec < nrec; rec++ {
		for c, samples := range record(rec) {
			for _, s := range samples {
				pmin[c] = math.Min(pmin[c], s)
				pmax[c] = math.Max(pmax[c], s)
			}
		}
	}

	signals := make([]edf.Signal, len(channelNames))
	for c, name := range channelNames {
		// The header stores the physical range at limited ASCII precision,
		// so digitize against the snapped values the reader will decode
		// with, not the raw data extrema.
		lo, hi := snapDown(pmin[c]), snapUp(pmax[c])
		if !(hi > lo) {
			hi = lo + 1 // flat channel, keep the calibration well-formed
		}
		signals[c] = edf.Signal{
			Label:             name,
			PhysicalDimension: "uV",
			PhysicalMin:       lo,
			PhysicalMax:       hi,
			DigitalMin:        -32768,
			DigitalMax:        32767,
			SamplesPerRecord:  spr,
		}
	}

	if start.IsZero() {
		start = time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)
	}
	hdr := edf.Header{
		Version:            edf.Version0,
		RecordingID:        fmt.Sprintf("%s sfreq=%s", recordingIDPrefix, strconv.FormatFloat(rate, 'g', -1, 64)),
		StartTime:          start,
		DataRecordDuration: time.Duration(float64(spr) / rate * float64(time.Second)),
		SignalCount:        len(signals),
		Signals:            signals,
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}

	if err := func() error {
		ew, err := edf.Create(f, hdr)
		if err != nil {
			return fmt.Errorf("error creating EDF file: %w", err)
		}
		for rec := 0; rec < nrec; rec++ {
			if err := ew.WriteRecord(record(rec)); err != nil {
				return fmt.Errorf("error writing data record %d: %w", rec, err)
			}
		}
		if err := ew.Close(); err != nil {
			return fmt.Errorf("error finalizing EDF file: %w", err)
		}
		return nil
	}(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// snapDown and snapUp round a calibration bound outward to the two decimal
// places the EDF header's eight-character physical range fields hold, or to
// a whole number when even that would not fit.
func snapDown(v float64) float64 {
	s := math.Floor(v*100) / 100
	if len(fmt.Sprintf("%.2f", s)) > 8 {
		return math.Floor(v)
	}
	return s
}

func snapUp(v float64) float64 {
	s := math.Ceil(v*100) / 100
	if len(fmt.Sprintf("%.2f", s)) > 8 {
		return math.Ceil(v)
	}
	return s
}

// rawSamplesPerRecord picks a record size for a continuous recording: the
// largest divisor of the sample count that keeps a record within the EDF
// size limit, so no padding is ever needed.
func rawSamplesPerRecord(n, channels int) (int, error) {
	limit := maxRecordBytes / (2 * channels)
	if limit < 1 {
		return 0, fmt.Errorf("%d channels exceed the %d byte EDF record limit", channels, maxRecordBytes)
	}
	if n <= limit {
		return n, nil
	}
	best := 1
	for d := 1; d*d <= n; d++ {
		if n%d != 0 {
			continue
		}
		if d <= limit && d > best {
			best = d
		}
		if q := n / d; q <= limit && q > best {
			best = q
		}
	}
	return best, nil
}

// readSignalData reads n samples of each of the given channels from an EDF
// file written by this package.
func readSignalData(path string, channels, n int) ([][]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	er, err := edf.Open(f)
	if err != nil {
		return nil, fmt.Errorf("error opening EDF file: %w", err)
	}

	data := make([][]float64, channels)
	for c := 0; c < channels; c++ {
		sr, err := er.Signal(c)
		if err != nil {
			return nil, fmt.Errorf("error opening signal %d: %w", c, err)
		}
		buf := make([]float64, n)
		read, err := sr.Read(buf)
		if err != nil && err != io.EOF {
			return nil, fmt.Errorf("error reading signal %d: %w", c, err)
		}
		if read != n {
			return nil, fmt.Errorf("signal %d has %d samples, expected %d", c, read, n)
		}
		data[c] = buf
	}
	return data, nil
}

// signalFileInfo is the header metadata needed to reconstruct a recording
// without reading its payload.
type signalFileInfo struct {
	channelNames     []string
	sampleRate       float64
	samplesPerRecord int
	dataRecords      int
	startTime        time.Time
}

func (info *signalFileInfo) totalSamples() int {
	return info.dataRecords * info.samplesPerRecord
}

// probeSignalFile reads the EDF header at fixed offsets. The edf package's
// Reader keeps its parsed header private, and lazy loading needs the
// channel names, sampling frequency and sample counts without touching the
// payload.
func probeSignalFile(path string) (*signalFileInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	fixed := make([]byte, 256)
	if _, err := io.ReadFull(f, fixed); err != nil {
		return nil, fmt.Errorf("error reading EDF header: %w", err)
	}

	ns, err := strconv.Atoi(strings.TrimSpace(string(fixed[252:256])))
	if err != nil || ns < 1 {
		return nil, fmt.Errorf("invalid EDF signal count %q", strings.TrimSpace(string(fixed[252:256])))
	}
	dataRecords, err := strconv.Atoi(strings.TrimSpace(string(fixed[236:244])))
	if err != nil {
		return nil, fmt.Errorf("error parsing data record count: %w", err)
	}

	perSignal := make([]byte, ns*256)
	if _, err := io.ReadFull(f, perSignal); err != nil {
		return nil, fmt.Errorf("error reading EDF signal headers: %w", err)
	}

	info := &signalFileInfo{
		channelNames: make([]string, ns),
		dataRecords:  dataRecords,
	}
	for i := 0; i < ns; i++ {
		info.channelNames[i] = strings.TrimSpace(string(perSignal[i*16 : (i+1)*16]))
	}
	// Samples-per-record fields follow label, transducer, dimension,
	// physical and digital ranges and prefiltering blocks.
	sprOff := ns * (16 + 80 + 8 + 8 + 8 + 8 + 8 + 80)
	info.samplesPerRecord, err = strconv.Atoi(strings.TrimSpace(string(perSignal[sprOff : sprOff+8])))
	if err != nil {
		return nil, fmt.Errorf("error parsing samples per record: %w", err)
	}

	// The exact sampling frequency is carried in the recording
	// identification field; fall back to the whole-second record duration
	// for files written by other software.
	info.sampleRate = parseStashedRate(strings.TrimSpace(string(fixed[88:168])))
	if info.sampleRate <= 0 {
		seconds, err := strconv.ParseFloat(strings.TrimSpace(string(fixed[244:252])), 64)
		if err != nil || seconds <= 0 {
			return nil, fmt.Errorf("cannot determine sampling frequency of %s", path)
		}
		info.sampleRate = float64(info.samplesPerRecord) / seconds
	}

	dateStr := strings.TrimSpace(string(fixed[168:176]))
	timeStr := strings.TrimSpace(string(fixed[176:184]))
	if date, err := time.Parse("02.01.06", dateStr); err == nil {
		if clock, err := time.Parse("15.04.05", timeStr); err == nil {
			info.startTime = time.Date(date.Year(), date.Month(), date.Day(),
				clock.Hour(), clock.Minute(), clock.Second(), 0, time.UTC)
		}
	}

	return info, nil
}

func parseStashedRate(recordingID string) float64 {
	if !strings.HasPrefix(recordingID, recordingIDPrefix+" ") {
		return 0
	}
	for _, field := range strings.Fields(recordingID) {
		if v, ok := strings.CutPrefix(field, "sfreq="); ok {
			rate, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return 0
			}
			return rate
		}
	}
	return 0
}
