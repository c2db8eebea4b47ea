/*Package interval implements per-sequence interval-union masks, loaded from
  BED files or region strings, for restricting which depth positions take part
  in coverage assembly.
  (Overlapping intervals are merged, not tracked separately.)
  It assumes every position fits in a PosType, which is currently defined as
  int32 since that's what BAM files, and hence samtools depth output, are
  limited to.
*/
package interval
