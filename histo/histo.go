/*
 * histo.go, part of gomm.
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

//Package histo implements fixed-divider histograms over gonum/stat, used to
//accumulate the distributions sampled by monitors.
package histo

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

//Data is a histogram. Values outside the range of the dividers are not counted.
type Data struct {
	id         int
	normalized bool
	total      int
	dividers   []float64
	histo      []float64
}

type jsonData struct {
	ID         int       `json:"id"`
	Normalized bool      `json:"normalized"`
	Total      int       `json:"total"`
	Dividers   []float64 `json:"dividers"`
	Histo      []float64 `json:"histo"`
}

func (D *Data) MarshalJSON() ([]byte, error) {
	return json.Marshal(jsonData{
		ID:         D.id,
		Normalized: D.normalized,
		Total:      D.total,
		Dividers:   D.dividers,
		Histo:      D.histo,
	})
}

func (D *Data) UnmarshalJSON(b []byte) error {
	var a jsonData
	if err := json.Unmarshal(b, &a); err != nil {
		return err
	}
	if len(a.Dividers) > 0 && len(a.Histo) != len(a.Dividers)-1 {
		return fmt.Errorf("gomm/histo: %d bins for %d dividers", len(a.Histo), len(a.Dividers))
	}
	D.id = a.ID
	D.normalized = a.Normalized
	D.total = a.Total
	D.dividers = a.Dividers
	D.histo = a.Histo
	return nil
}

//ID returns the ID of the histogram
func (D *Data) ID() int {
	return D.id
}

//String returns a 3-line representation of the histogram: a header, the bin limits
//and the bin contents.
func (D *Data) String() string {
	ret := fmt.Sprintf("ID: %d, Normalized: %v, TotalData: %d\n", D.id, D.normalized, D.total)
	d := make([]string, 0, len(D.histo))
	h := make([]string, 0, len(D.histo))
	for i, v := range D.histo {
		d = append(d, fmt.Sprintf("%4.2f-%4.2f", D.dividers[i], D.dividers[i+1]))
		h = append(h, fmt.Sprintf("%9.3f", v))
	}
	return ret + fmt.Sprintf("%s\n%s", strings.Join(d, " "), strings.Join(h, " "))
}

//NewData returns a new histogram from the dividers and rawdata given.
//rawdata can be nil, in which case an empty histogram is created.
//If an ID is given, it is set, otherwise the ID is -1.
func NewData(dividers []float64, rawdata []float64, ID ...int) *Data {
	d := new(Data)
	d.dividers = append([]float64(nil), dividers...)
	d.histo = make([]float64, len(dividers)-1)
	if rawdata != nil {
		d.ReHisto(d.dividers, rawdata)
	}
	d.id = -1
	if len(ID) > 0 {
		d.id = ID[0]
	}
	return d
}

//NewFixedWidth returns a histogram of rawdata with bins of the given width, spanning
//the whole range of the data. The first divider is the smallest value.
func NewFixedWidth(rawdata []float64, width float64, ID ...int) (*Data, error) {
	if len(rawdata) == 0 {
		return nil, fmt.Errorf("gomm/histo: no data")
	}
	if !(width > 0) || math.IsInf(width, 0) {
		return nil, fmt.Errorf("gomm/histo: invalid bin width %g", width)
	}
	if floats.HasNaN(rawdata) {
		return nil, fmt.Errorf("gomm/histo: non-finite data")
	}
	lo, hi := floats.Min(rawdata), floats.Max(rawdata)
	if math.IsInf(lo, 0) || math.IsInf(hi, 0) {
		return nil, fmt.Errorf("gomm/histo: non-finite data")
	}
	nb := int(math.Floor((hi-lo)/width)) + 1
	dividers := make([]float64, nb+1)
	for i := range dividers {
		dividers[i] = lo + float64(i)*width
	}
	//the last bin must strictly contain the largest value
	for dividers[nb] <= hi {
		dividers = append(dividers, dividers[nb]+width)
		nb++
	}
	return NewData(dividers, rawdata, ID...), nil
}

//AddData adds the given data point(s) to the histogram
func (D *Data) AddData(point ...float64) {
	var norma bool
	if D.normalized {
		norma = true
		D.UnNormalize()
	}
	for _, v := range point {
		//the dividers are sorted, so we can search for the bin.
		j := sort.SearchFloat64s(D.dividers, v)
		if j < len(D.dividers) && D.dividers[j] == v {
			j++
		}
		if j == 0 || j >= len(D.dividers) {
			continue
		}
		D.histo[j-1]++
		D.total++
	}
	//if it was normalized, we return it to that state
	if norma {
		D.Normalize()
	}
}

//Total returns the number of points counted in the histogram.
func (D *Data) Total() int {
	return D.total
}

//Normalized Returns true if the histogram is normalized
func (D *Data) Normalized() bool {
	return D.normalized
}

//Normalize normalizes the histogram, so its bins add up to 1.
func (D *Data) Normalize() {
	D.normaunnorma(true)
}

//UnNormalize turns the bins back into counts.
func (D *Data) UnNormalize() {
	D.normaunnorma(false)
}

func (D *Data) normaunnorma(normalize bool) {
	if D.total <= 0 || D.normalized == normalize {
		return
	}
	n := float64(D.total)
	D.normalized = false
	if normalize {
		n = 1 / float64(D.total)
		D.normalized = true
	}
	floats.Scale(n, D.histo)
}

//CopyDividers copies the dividers of the histogram to dest, if given and
//large enough, or to a new slice.
func (D *Data) CopyDividers(dest ...[]float64) []float64 {
	d := getCopySlice(len(D.dividers), dest...)
	return floats.ScaleTo(d, 1, D.dividers)
}

//Copy copies the bins of the histogram.
func (D *Data) Copy(dest ...[]float64) []float64 {
	d := getCopySlice(len(D.histo), dest...)
	return floats.ScaleTo(d, 1, D.histo)
}

//View returns the bins of the histogram. The slice is not a copy.
func (D *Data) View() []float64 {
	return D.histo
}

//Centers returns the centers of the bins.
func (D *Data) Centers() []float64 {
	ret := make([]float64, len(D.histo))
	for i := range ret {
		ret[i] = 0.5 * (D.dividers[i] + D.dividers[i+1])
	}
	return ret
}

//Add adds the histograms a and b putting the result in the receiver.
func (D *Data) Add(a, b *Data) error {
	if !floats.Equal(a.dividers, b.dividers) {
		return fmt.Errorf("gomm/histo: dividers must match in added histograms")
	}
	D.dividers = a.CopyDividers(D.dividers)
	D.histo = getCopySlice(len(a.histo), D.histo)
	floats.AddTo(D.histo, a.histo, b.histo)
	D.total = a.total + b.total
	D.normalized = false
	return nil
}

//Sum returns the sum of the bins.
func (D *Data) Sum() float64 {
	return floats.Sum(D.histo)
}

//ReHisto recomputes the histogram for the given dividers and data. rawdata is not modified.
func (D *Data) ReHisto(dividers, rawdata []float64) {
	data := append([]float64(nil), rawdata...)
	sort.Float64s(data)
	//stat.Histogram panics instead of omitting the values that are off limits,
	//so we remove them here before the call.
	maxi := sort.SearchFloat64s(data, dividers[len(dividers)-1])
	mini := sort.SearchFloat64s(data, dividers[0])
	data = data[mini:maxi]
	D.dividers = append(D.dividers[:0], dividers...)
	D.total = len(data)
	D.normalized = false
	D.histo = stat.Histogram(nil, D.dividers, data, nil)
}

func getCopySlice(N int, dest ...[]float64) []float64 {
	if len(dest) > 0 && len(dest[0]) >= N {
		return dest[0][:N]
	}
	return make([]float64, N)
}
