package progress

//nolint:gochecknoglobals // fixed event-to-percent mapping
var eventPercent = map[string]int{
	EventResolveSource: 5,
	EventForkStart:     10,
	EventCreateStart:   10,
	EventForkOK:        55,
	EventPopulateStart: 20,
	EventImportOK:      55,
	EventCopyOK:        55,
	EventWriteAgents:   70,
	EventAgentStart:    85,
	EventDone:          100,
}

// Percent maps an event onto the 0-100 progress scale, never regressing
// below the previous value. copy-progress interpolates between populate
// and import using the copied/total counters it carries.
func Percent(prev int, event string, data map[string]any) int {
	p := prev
	if event == EventCopyProgress {
		copied, total := asInt(data["copied"]), asInt(data["total"])
		if total > 0 {
			p = 20 + copied*35/total
		}
	} else if v, ok := eventPercent[event]; ok {
		p = v
	}
	if p < prev {
		return prev
	}
	return p
}

func asInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}
