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

/*
bio-covoverlap turns the per-base output of "samtools depth" into coverage
features (runs of contiguous, sufficiently deep bases), and optionally reports
how each feature overlaps the features of a reference GFF annotation.

Features are written as GFF to <out>.gff.  Without a reference, each line
carries the feature's mean and median depth and its number of gaps.  With a
reference, one line is written per overlapping reference feature, typed as
tail, head, exact, inset or flank; features with no overlap are typed null.
Run "bio-covoverlap types" for a picture of the overlap types.

Sample usage:
samtools depth sample.bam | bio-covoverlap run \
    -gff genes.gff3 \
    -type mRNA \
    -out sample-coverage
*/
package main
