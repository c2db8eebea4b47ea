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
package main

import (
	"fmt"

	"github.com/grailbio/base/cmdutil"
	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/covoverlap/overlap"
	"github.com/grailbio/covoverlap/pipeline"
	"v.io/x/lib/cmdline"
)

func newCmdRun() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "run",
		Short:    "Assemble coverage features from samtools depth output",
		ArgsName: "[depthpath]",
		ArgsLong: "depthpath is a samtools depth table, optionally compressed.  If omitted or \"-\", standard input is read.",
	}
	opts := pipeline.DefaultOpts
	cmd.Flags.StringVar(&opts.GFFPath, "gff", opts.GFFPath, "Reference GFF annotation.  If set, each coverage feature is classified by its overlap with the reference features")
	cmd.Flags.StringVar(&opts.TypeFilter, "type", opts.TypeFilter, "Only load reference lines whose type column contains this string, e.g. 'mRNA'")
	cmd.Flags.IntVar(&opts.MinMeanDepth, "min-mean-depth", opts.MinMeanDepth, "Coverage features with a lower mean depth are dropped")
	cmd.Flags.IntVar(&opts.MinBaseDepth, "min-base-depth", opts.MinBaseDepth, "Bases with a lower depth are ignored")
	cmd.Flags.IntVar(&opts.MinFeatureLen, "min-feature-len", opts.MinFeatureLen, "Coverage features shorter than this are dropped")
	cmd.Flags.IntVar(&opts.GapLen, "gap-len", opts.GapLen, "A jump between retained bases of at least this length is counted as a gap")
	cmd.Flags.IntVar(&opts.JumpLen, "jump-len", opts.JumpLen, "A jump between retained bases longer than this starts a new coverage feature")
	cmd.Flags.BoolVar(&opts.FilterTerminal, "filter-terminal", opts.FilterTerminal, "Apply the length and mean depth thresholds to the last coverage feature too")
	cmd.Flags.StringVar(&opts.BEDPath, "bed", opts.BEDPath, "Only use depth positions inside the intervals of this BED; at most one of -bed and -region may be set")
	cmd.Flags.BoolVar(&opts.InvertBED, "invert-bed", opts.InvertBED, "Only use depth positions outside the intervals of -bed")
	cmd.Flags.BoolVar(&opts.BEDOneBased, "bed-one-based", opts.BEDOneBased, "Read -bed intervals as 1-based, closed [start, end]")
	cmd.Flags.StringVar(&opts.Region, "region", opts.Region, "Only use depth positions in the specified region. Format as <contig ID>:<1-based first pos>-<last pos>, <contig ID>:<1-based pos>, or just <contig ID>")
	cmd.Flags.StringVar(&opts.OutPrefix, "out", opts.OutPrefix, "Output path prefix; '.gff' is appended ('.gff.gz' with -bgzip)")
	cmd.Flags.BoolVar(&opts.Bgzip, "bgzip", opts.Bgzip, "bgzip the output")
	cmd.Flags.IntVar(&opts.Parallelism, "parallelism", opts.Parallelism, "Maximum number of sequences classified simultaneously; 0 = runtime.NumCPU()")
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		switch len(argv) {
		case 0:
		case 1:
			opts.DepthPath = argv[0]
		default:
			return fmt.Errorf("run takes at most one depth path, but got %v", argv)
		}
		summary, err := pipeline.Run(vcontext.Background(), &opts)
		if err != nil {
			return err
		}
		log.Printf("wrote %s", summary.OutPath)
		summary.WriteTable(env.Stdout)
		return nil
	})
	return cmd
}

func newCmdTypes() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:  "types",
		Short: "Show the overlap types",
	}
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 0 {
			return fmt.Errorf("types takes no arguments, but got %v", argv)
		}
		_, err := fmt.Fprint(env.Stdout, overlap.Diagram)
		return err
	})
	return cmd
}

func main() {
	shutdown := grail.Init()
	defer shutdown()
	cmdline.HideGlobalFlagsExcept()
	cmdline.Main(&cmdline.Command{
		Name:     "bio-covoverlap",
		Short:    "Coverage feature assembly and reference overlap classification",
		LookPath: false,
		Children: []*cmdline.Command{
			newCmdRun(),
			newCmdTypes(),
		},
	})
}
