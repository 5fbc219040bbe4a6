// Package report describes the outcome of a weave run.
//
// A Report lists one ClassReport per input. Reports carry content digests
// of every input and output so runs can be compared: Digest hashes the
// canonical JSON form of a report with domain separation, and Fingerprint
// keys the ledger's cache of already woven inputs.
package report
