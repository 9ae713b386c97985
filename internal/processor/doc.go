// Package processor contains the k2a workflows. AddCard turns an expression
// and an example sentence into a tagged card with dictionary data and, when
// an acceptable clip exists, pronunciation audio. BackfillAudio revisits
// cards without audio. ResetLastImportTag clears the marker of the previous
// import so that only the current run's cards carry it.
//
// The processor works on an open store handed in by the caller and never
// opens or closes the collection on its own, except through SaveAndClose.
package processor
