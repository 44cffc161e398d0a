// Package logs reads bobbin's log files for the CLI.
//
// Last returns the trailing lines of a file with bounded memory and Follow
// polls for lines appended after an offset until its context ends. A log
// file that does not exist yet reads as empty, so a job log can be followed
// before the run reaches that job.
package logs
