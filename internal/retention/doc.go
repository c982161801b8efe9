// Package retention bounds how long archived keys are kept, evicting by
// age and by count so that read-only archives cannot grow without limit.
package retention
