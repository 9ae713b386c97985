// Package audio fetches Japanese pronunciation clips, measures them and
// decides whether they are kept. Clips land in the collection's media
// directory under a name derived from the expression and its reading.
package audio
