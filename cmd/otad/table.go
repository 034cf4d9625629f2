package main

import (
	"bytes"
	"fmt"
	"sort"
)

type table struct {
	data [][]string
}

func newTable(headers ...string) *table {
	return &table{data: [][]string{headers}}
}

func (t *table) add(cells ...string) *table {
	t.data = append(t.data, cells)
	return t
}

func (t *table) string() string {
	// prepare buffer
	buf := new(bytes.Buffer)

	// get max cell lengths
	lengths := make([]int, len(t.data[0]))
	for _, v := range t.data {
		for i, cell := range v {
			lengths[i] = max(lengths[i], len(cell))
		}
	}

	// construct string
	for _, v := range t.data {
		buf.WriteString(makeRow(v, lengths))
		buf.WriteString("\n")
	}

	return buf.String()
}

func (t *table) show(sortColumn int) {
	// sort rows without header
	if sortColumn >= 0 {
		sub := t.data[1:]
		sort.SliceStable(sub, func(i, j int) bool {
			return sub[i][sortColumn] < sub[j][sortColumn]
		})
	}

	// show table
	fmt.Print(t.string())
}

func makeRow(cells []string, lengths []int) string {
	// prepare buffer
	buf := new(bytes.Buffer)

	// iterate over all cells
	for i, cell := range cells {
		// write content
		buf.WriteString(cell)

		// fill to right
		if i < len(cells)-1 {
			buf.Write(bytes.Repeat([]byte(" "), lengths[i]-len(cell)))
		}

		// add padding
		buf.WriteString("   ")
	}

	return buf.String()
}
