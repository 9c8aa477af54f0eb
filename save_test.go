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
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/OpenPSG/eegset"
	"github.com/stretchr/testify/require"
)

func TestSaveConcatRawDataset(t *testing.T) {
	dir := t.TempDir()
	c := makeConcatRaw(t, 3)

	var warns []string
	require.NoError(t, c.Save(dir, captureWarnings(&warns)))
	require.Empty(t, warns)

	for i := 0; i < 3; i++ {
		sub := filepath.Join(dir, strconv.Itoa(i))
		require.FileExists(t, filepath.Join(sub, "description.json"))
		require.FileExists(t, filepath.Join(sub, fmt.Sprintf("%d-raw.edf", i)))
	}
	require.NoDirExists(t, filepath.Join(dir, "3"))
}

func TestSaveConcatWindowsDataset(t *testing.T) {
	dir := t.TempDir()
	c := makeConcatWindows(t, 3)

	var warns []string
	require.NoError(t, c.Save(dir, captureWarnings(&warns)))
	require.Empty(t, warns)

	for i := 0; i < 3; i++ {
		sub := filepath.Join(dir, strconv.Itoa(i))
		require.FileExists(t, filepath.Join(sub, "description.json"))
		require.FileExists(t, filepath.Join(sub, fmt.Sprintf("%d-epo.edf", i)))
		require.FileExists(t, filepath.Join(sub, "windows.json"))
		require.FileExists(t, filepath.Join(sub, "window_kwargs.json"))
	}
	require.NoDirExists(t, filepath.Join(dir, "3"))
}

func TestSaveEmptyCollection(t *testing.T) {
	err := eegset.NewConcatDataset().Save(t.TempDir())
	require.ErrorContains(t, err, "at least one dataset")
}

func TestSaveSubdirectoryAlreadyExists(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "0"), 0o755))

	err := makeConcatWindows(t, 2).Save(dir)
	require.ErrorIs(t, err, fs.ErrExist)
	require.ErrorContains(t, err, "subdirectory")
}

func TestSaveDirectoryContainsFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "test.txt"), []byte("test"), 0o644))

	var warns []string
	require.NoError(t, makeConcatWindows(t, 2).Save(dir, captureWarnings(&warns)))
	require.Len(t, warns, 1)
	require.Contains(t, warns[0], "contains other")
}

func TestSaveOtherSubdirectoriesExist(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "999"), 0o755))

	var warns []string
	require.NoError(t, makeConcatWindows(t, 2).Save(dir, captureWarnings(&warns)))
	require.Len(t, warns, 1)
	require.Contains(t, warns[0], "contains other")
}

func TestSaveVaryingNumberOfDatasetsWithOverwrite(t *testing.T) {
	dir := t.TempDir()
	c := makeConcatWindows(t, 3)
	require.NoError(t, c.Save(dir))

	// Overwriting with fewer datasets leaves orphaned subdirectories
	// behind and must warn exactly once.
	subset, err := c.Subset(0)
	require.NoError(t, err)
	var warns []string
	require.NoError(t, subset.Save(dir, eegset.WithOverwrite(), captureWarnings(&warns)))
	require.Len(t, warns, 1)
	require.Contains(t, warns[0], "number of saved datasets")

	// Overwriting with as many datasets as on disk warns nothing.
	warns = nil
	require.NoError(t, c.Save(dir, eegset.WithOverwrite(), captureWarnings(&warns)))
	require.Empty(t, warns)

	// Overwriting with more datasets than on disk warns nothing either.
	double := eegset.Concat(c, c)
	warns = nil
	require.NoError(t, double.Save(dir, eegset.WithOverwrite(), captureWarnings(&warns)))
	require.Empty(t, warns)
}

func TestSaveOffsetAppends(t *testing.T) {
	dir := t.TempDir()
	c := makeConcatRaw(t, 3)

	var warns []string
	require.NoError(t, c.Save(dir, captureWarnings(&warns)))
	require.NoError(t, c.Save(dir, eegset.WithOffset(c.NumDatasets()), captureWarnings(&warns)))
	require.Empty(t, warns)

	for i := 0; i < 6; i++ {
		require.FileExists(t, filepath.Join(dir, strconv.Itoa(i), fmt.Sprintf("%d-raw.edf", i)))
	}
}

func TestCheckSaveDirEmpty(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, eegset.CheckSaveDirEmpty(dir))

	require.NoError(t, makeConcatRaw(t, 2).Save(dir))
	err := eegset.CheckSaveDirEmpty(dir)
	require.ErrorIs(t, err, fs.ErrExist)
}

func TestSaveFlatRawDataset(t *testing.T) {
	dir := t.TempDir()
	c := makeConcatRaw(t, 3)

	var warns []string
	require.NoError(t, c.SaveFlat(dir, captureWarnings(&warns)))
	require.Len(t, warns, 1)
	require.Contains(t, warns[0], "backwards compatibility")

	require.FileExists(t, filepath.Join(dir, "description.json"))
	for i := 0; i < 3; i++ {
		require.FileExists(t, filepath.Join(dir, fmt.Sprintf("%d-raw.edf", i)))
	}
	require.NoFileExists(t, filepath.Join(dir, "3-raw.edf"))

	// A second flat save needs overwrite.
	err := c.SaveFlat(dir, captureWarnings(&warns))
	require.ErrorIs(t, err, fs.ErrExist)
	require.NoError(t, c.SaveFlat(dir, eegset.WithOverwrite(), captureWarnings(&warns)))
}

func TestSaveFlatWindowsDatasetFails(t *testing.T) {
	var warns []string
	err := makeConcatWindows(t, 2).SaveFlat(t.TempDir(), captureWarnings(&warns))
	require.ErrorContains(t, err, "not implemented for windows datasets")
	require.Len(t, warns, 1)
}
