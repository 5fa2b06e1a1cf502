package domain

// Quality is a playback quality label.
type Quality string

const (
	QualityAuto  Quality = "auto"
	Quality144p  Quality = "144p"
	Quality240p  Quality = "240p"
	Quality360p  Quality = "360p"
	Quality480p  Quality = "480p"
	Quality720p  Quality = "720p"
	Quality1080p Quality = "1080p"
	Quality1440p Quality = "1440p"
	Quality2160p Quality = "2160p"
)

var qualities = []Quality{
	QualityAuto,
	Quality144p,
	Quality240p,
	Quality360p,
	Quality480p,
	Quality720p,
	Quality1080p,
	Quality1440p,
	Quality2160p,
}

// Valid reports whether q is a known quality label.
func (q Quality) Valid() bool {
	for _, known := range qualities {
		if q == known {
			return true
		}
	}
	return false
}

// QualityNames lists the accepted labels in ascending order.
func QualityNames() []string {
	names := make([]string, len(qualities))
	for i, q := range qualities {
		names[i] = string(q)
	}
	return names
}
