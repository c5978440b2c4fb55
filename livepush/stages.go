package livepush

import (
	"regexp"
	"strings"
)

var (
	stepFrom     = regexp.MustCompile(`(?i)^Step \d+/\d+ : FROM\s`)
	imageID      = regexp.MustCompile(`^ ---> ([0-9a-f]{12,64})\s*$`)
	builtImageID = regexp.MustCompile(`^Successfully built ([0-9a-f]{12,64})\s*$`)
)

// StageImageIDs recovers the image id of every stage from a classic builder log.
// A stage ends where the next FROM step begins, its id is the last " ---> <id>"
// seen before that. The result has one entry per FROM step found.
func StageImageIDs(buildLog string) []string {
	ids := []string{}
	current, inStage := "", false
	for _, line := range strings.Split(buildLog, "\n") {
		line = strings.TrimRight(line, "\r")
		switch {
		case stepFrom.MatchString(line):
			if inStage {
				ids = append(ids, current)
			}
			current, inStage = "", true
		case imageID.MatchString(line):
			current = imageID.FindStringSubmatch(line)[1]
		case builtImageID.MatchString(line):
			current = builtImageID.FindStringSubmatch(line)[1]
		}
	}
	if inStage {
		ids = append(ids, current)
	}
	return ids
}
