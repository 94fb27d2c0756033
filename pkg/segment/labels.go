package segment

import "fmt"

// CalibrationLabel always names the first epoch.
const CalibrationLabel = "cali"

// Condition code tables. Each code is a single letter entered by the operator.
var (
	LightCodes = map[rune]string{'A': "On", 'B': "Off", 'C': "Dim"}
	HeadCodes  = map[rune]string{'A': "Center", 'B': "Below", 'C': "Free"}
	MediaCodes = map[rune]string{'A': "Image", 'B': "Video"}
)

// Labels returns "cali" followed by the nested light x head x media product
// of the given codes, each formatted as "{light}-{head}-{media}".
func Labels(light, head, media string) ([]string, error) {
	l, err := lookup("light", light, LightCodes)
	if err != nil {
		return nil, err
	}
	h, err := lookup("head", head, HeadCodes)
	if err != nil {
		return nil, err
	}
	m, err := lookup("media", media, MediaCodes)
	if err != nil {
		return nil, err
	}

	labels := make([]string, 0, 1+len(l)*len(h)*len(m))
	labels = append(labels, CalibrationLabel)
	for _, li := range l {
		for _, hi := range h {
			for _, mi := range m {
				labels = append(labels, li+"-"+hi+"-"+mi)
			}
		}
	}
	return labels, nil
}

func lookup(kind, codes string, table map[rune]string) ([]string, error) {
	out := make([]string, 0, len(codes))
	for _, c := range codes {
		name, ok := table[c]
		if !ok {
			return nil, fmt.Errorf("%w: %s code %q", ErrUnknownCode, kind, c)
		}
		out = append(out, name)
	}
	return out, nil
}
