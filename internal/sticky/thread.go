package sticky

import (
	"encoding/json"
	"os"
	"strconv"
	"strings"
)

// ResolveThread finds the pull request number for this run.
// Sources in order: explicit, a refs/pull/<n>/... ref, the event payload file.
// Returns 0 when the run is not in a pull request.
func ResolveThread(explicit int, ref, eventPath string) int {
	if explicit > 0 {
		return explicit
	}

	if n := threadFromRef(ref); n > 0 {
		return n
	}

	return threadFromEvent(eventPath)
}

func threadFromRef(ref string) int {
	rest, ok := strings.CutPrefix(ref, "refs/pull/")
	if !ok {
		return 0
	}

	num, _, _ := strings.Cut(rest, "/")

	n, err := strconv.Atoi(num)
	if err != nil || n < 0 {
		return 0
	}

	return n
}

type eventPayload struct {
	PullRequest *struct {
		Number int `json:"number"`
	} `json:"pull_request"`
}

func threadFromEvent(path string) int {
	if path == "" {
		return 0
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return 0
	}

	var payload eventPayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.PullRequest == nil {
		return 0
	}

	return payload.PullRequest.Number
}
