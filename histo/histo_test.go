/*
 * histo_test.go, part of gomm.
 *
 * Copyright 2024 The gomm authors.
 *
 * This program is free software; you can redistribute it and/or modify
 * it under the terms of the GNU Lesser General Public License as
 * published by the Free Software Foundation; either version 2.1 of the
 * License, or (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU Lesser General
 * Public License along with this program.  If not, see
 * <http://www.gnu.org/licenses/>.
 *
 */

package histo

import (
	"encoding/json"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistoIO(Te *testing.T) {
	rawdata := []float64{1, 6, 3, 2, 4, 5, 7, 6, 3.5, 3, 5, 1, 1, 0, 0, 5, 8, 1, 2, 3, 44, 3, 7, 3, 1, 3, 5, 32, 1}
	D := NewData([]float64{0, 1, 2, 3, 4, 8}, rawdata, 3)
	fmt.Println(D)
	//8, 44 and 32 fall outside
	assert.Equal(Te, len(rawdata)-3, D.Total())
	assert.Equal(Te, []float64{2, 6, 2, 7, 9}, D.View())
	j, err := json.Marshal(D)
	require.NoError(Te, err)
	D2 := new(Data)
	require.NoError(Te, json.Unmarshal(j, D2))
	assert.Equal(Te, D.View(), D2.View())
	assert.Equal(Te, D.CopyDividers(), D2.CopyDividers())
	assert.Equal(Te, 3, D2.ID())
	assert.Error(Te, json.Unmarshal([]byte(`{"dividers":[0,1,2],"histo":[1]}`), D2))
}

func TestFixedWidth(Te *testing.T) {
	data := []float64{1.0, 1.2, 1.9, 2.0, 2.5, 3.0}
	D, err := NewFixedWidth(data, 0.5)
	require.NoError(Te, err)
	assert.Equal(Te, len(data), D.Total())
	assert.InDelta(Te, 6, D.Sum(), 1e-12)
	div := D.CopyDividers()
	assert.Equal(Te, 1.0, div[0])
	assert.Greater(Te, div[len(div)-1], 3.0)
	assert.Equal(Te, []float64{1.25, 1.75, 2.25, 2.75, 3.25}, D.Centers())
	D.Normalize()
	assert.InDelta(Te, 1, D.Sum(), 1e-12)
	D.AddData(1.1, 10)
	assert.True(Te, D.Normalized())
	assert.Equal(Te, 7, D.Total())
	assert.InDelta(Te, 3.0/7, D.View()[0], 1e-12)
	_, err = NewFixedWidth(nil, 1)
	assert.Error(Te, err)
	_, err = NewFixedWidth(data, 0)
	assert.Error(Te, err)
	for _, bad := range [][]float64{
		{1, math.NaN(), 2},
		{1, 2, math.NaN()},
		{math.NaN(), 1},
		{1, math.Inf(1)},
		{math.Inf(-1), 1, 2},
	} {
		_, err = NewFixedWidth(bad, 0.5)
		assert.Error(Te, err, "%v", bad)
	}
	var S Data
	require.NoError(Te, S.Add(NewData(div, data), NewData(div, data)))
	assert.InDelta(Te, 12, S.Sum(), 1e-12)
	assert.Error(Te, S.Add(NewData(div, data), NewData([]float64{0, 1}, nil)))
}
