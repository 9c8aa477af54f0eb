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

// ConcatDataset is an ordered collection of sub-datasets, each either a
// continuous Recording or a WindowsRecording.
type ConcatDataset struct {
	datasets []Dataset
}

// NewConcatDataset creates a collection from the given sub-datasets.
func NewConcatDataset(datasets ...Dataset) *ConcatDataset {
	return &ConcatDataset{datasets: append([]Dataset(nil), datasets...)}
}

// Concat merges several collections into one, preserving order.
func Concat(datasets ...*ConcatDataset) *ConcatDataset {
	out := &ConcatDataset{}
	for _, c := range datasets {
		out.datasets = append(out.datasets, c.datasets...)
	}
	return out
}

// Len returns the total number of items in the collection: the sum of the
// sample counts of raw sub-datasets and window counts of windowed ones.
func (c *ConcatDataset) Len() int {
	var n int
	for _, ds := range c.datasets {
		n += ds.Len()
	}
	return n
}

// NumDatasets returns the number of sub-datasets.
func (c *ConcatDataset) NumDatasets() int { return len(c.datasets) }

// Datasets returns the sub-datasets in order.
func (c *ConcatDataset) Datasets() []Dataset { return append([]Dataset(nil), c.datasets...) }

// At returns the i-th sub-dataset.
func (c *ConcatDataset) At(i int) Dataset { return c.datasets[i] }

// Subset returns a new collection holding the sub-datasets at the given
// indices, in the given order.
func (c *ConcatDataset) Subset(indices ...int) (*ConcatDataset, error) {
	out := &ConcatDataset{datasets: make([]Dataset, 0, len(indices))}
	for _, i := range indices {
		if i < 0 || i >= len(c.datasets) {
			return nil, fmt.Errorf("dataset index %d out of range [0, %d)", i, len(c.datasets))
		}
		out.datasets = append(out.datasets, c.datasets[i])
	}
	return out, nil
}

// Split groups the sub-datasets by the value of a description column and
// returns one collection per distinct value, keyed by the stringified
// value. Sub-datasets missing the column are grouped under "".
func (c *ConcatDataset) Split(column string) map[string]*ConcatDataset {
	out := make(map[string]*ConcatDataset)
	for _, ds := range c.datasets {
		key := ""
		if v, ok := ds.Description()[column]; ok {
			key = fmt.Sprint(v)
		}
		if out[key] == nil {
			out[key] = &ConcatDataset{}
		}
		out[key].datasets = append(out[key].datasets, ds)
	}
	return out
}

// DescriptionTable combines the sub-dataset descriptions into a table with
// one row per sub-dataset and one column per distinct metadata key.
func (c *ConcatDataset) DescriptionTable() *DescriptionTable {
	cols := map[string]struct{}{}
	rows := make([]Description, len(c.datasets))
	for i, ds := range c.datasets {
		rows[i] = ds.Description()
		for k := range rows[i] {
			cols[k] = struct{}{}
		}
	}
	columns := make([]string, 0, len(cols))
	for k := range cols {
		columns = append(columns, k)
	}
	sort.Strings(columns)
	return &DescriptionTable{columns: columns, rows: rows}
}

// DescriptionTable is the combined metadata of a collection: one row per
// sub-dataset, columns the sorted union of all metadata keys.
type DescriptionTable struct {
	columns []string
	rows    []Description
}

// Len returns the number of rows.
func (t *DescriptionTable) Len() int { return len(t.rows) }

// Columns returns the column names in sorted order.
func (t *DescriptionTable) Columns() []string { return append([]string(nil), t.columns...) }

// Row returns the i-th row.
func (t *DescriptionTable) Row(i int) Description { return t.rows[i] }

// Column returns the values of one column across all rows, nil where a row
// has no value for it.
func (t *DescriptionTable) Column(name string) []any {
	out := make([]any, len(t.rows))
	for i, row := range t.rows {
		out[i] = row[name]
	}
	return out
}

// StringRows returns the table with every value stringified, missing
// values rendered as the empty string. Useful for comparing tables whose
// values went through JSON (which widens numeric types).
func (t *DescriptionTable) StringRows() []map[string]string {
	out := make([]map[string]string, len(t.rows))
	for i, row := range t.rows {
		m := make(map[string]string, len(t.columns))
		for _, col := range t.columns {
			if v, ok := row[col]; ok {
				m[col] = fmt.Sprint(v)
			} else {
				m[col] = ""
			}
		}
		out[i] = m
	}
	return out
}
