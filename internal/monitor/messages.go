package monitor

// goneMessages are shown when the event page has no marketplace link.
var goneMessages = []string{
	"And thus, the marketplace has vanished. This is why we can't have nice things.",
	"The commons have been tragicked. Someone went and ruined it for everyone.",
	"Fun detected. Fun eliminated. Marketplace status: inactive.",
	"They took their ball and went home. Fair enough, honestly.",
	"Every shared resource contains the seeds of its own destruction.",
	"The marketplace has closed. Sometimes the only winning move is not to play.",
}

func goneMessage(r float64) string {
	i := int(r * float64(len(goneMessages)))
	if i < 0 {
		i = 0
	}
	if i >= len(goneMessages) {
		i = len(goneMessages) - 1
	}
	return goneMessages[i]
}
