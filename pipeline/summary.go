// Copyright 2020 Grail Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package pipeline

import (
	"io"
	"strconv"

	"github.com/grailbio/covoverlap/overlap"
	"github.com/olekukonko/tablewriter"
)

// WriteTable renders the overlap tally as a two-column table.  Nothing is
// written for an unclassified run.
func (s Summary) WriteTable(w io.Writer) {
	if !s.Classified {
		return
	}
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Type", "Records"})
	table.SetBorder(false)
	table.SetCenterSeparator("")
	table.SetColumnAlignment([]int{tablewriter.ALIGN_LEFT, tablewriter.ALIGN_RIGHT})
	for typ := overlap.Type(0); int(typ) < overlap.NumTypes; typ++ {
		table.Append([]string{typ.String(), strconv.Itoa(s.Tally.Count(typ))})
	}
	table.SetFooter([]string{"Total", strconv.Itoa(s.Tally.Total())})
	table.Render()
}
