package remove

import "strings"

// verdict of one failed remove result, judged from the core's error text.
//
// The core does not return structured error codes on per-container
// results, so the text is the contract.
type verdict int

const (
	// the container does not exist on the core side. The local record is
	// stale; deleting it is the right reconciliation.
	verdictAlreadyGone verdict = iota

	// the core rejected the id itself. Nothing to reconcile.
	verdictMalformedId

	// anything else. Needs human eyes.
	verdictFailed
)

func classify(errText string) verdict {
	switch {
	case strings.Contains(errText, "Key not found"),
		strings.Contains(errText, "No such container"):
		return verdictAlreadyGone
	case strings.Contains(errText, "Container ID must be length of"):
		return verdictMalformedId
	}
	return verdictFailed
}
