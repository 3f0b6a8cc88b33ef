package ymusic

import (
	"strings"

	"github.com/samber/lo"
)

// codecPriority ranks codecs when the preferred one is not offered.
func codecPriority(codec string) int {
	switch strings.ToLower(codec) {
	case "flac":
		return 4
	case "mp3":
		return 3
	case "aac":
		return 2
	default:
		return 0
	}
}

// SelectBest picks the variant to download. Variants in the preferred codec
// win by bitrate; otherwise the codec priority and then the bitrate decide.
// The first maximum wins ties. variants must not be empty.
func SelectBest(variants []Variant, preferredCodec string) Variant {
	if len(variants) == 0 {
		panic("no variants to select from")
	}

	preferred := lo.Filter(variants, func(v Variant, _ int) bool {
		return strings.EqualFold(v.Codec, preferredCodec)
	})
	if len(preferred) > 0 {
		return lo.MaxBy(preferred, func(a, b Variant) bool {
			return bitrate(a) > bitrate(b)
		})
	}

	return lo.MaxBy(variants, func(a, b Variant) bool {
		ap, bp := codecPriority(a.Codec), codecPriority(b.Codec)
		return ap > bp || (ap == bp && bitrate(a) > bitrate(b))
	})
}

// bitrate treats an unknown bitrate as 0.
func bitrate(v Variant) int {
	return max(v.BitrateKbps, 0)
}
