// Package pipeline walks the input tree and converts it into the output tree.
//
// A Processor mirrors every input directory into the output directory and
// dispatches each file: images go through the transcoder (load, downscale,
// re-encode, rename, atomic write), other files are copied or skipped. Files
// are converted on a bounded worker group; one file failing never stops the
// run, it is logged and counted in RunStats.
//
// The same Processor serves the initial batch run (Run) and single-file
// updates coming from watch mode (HandleDir, HandleFile).
package pipeline
