package rewrite

import (
	"fmt"
	"strings"
)

const base64Chars = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"

func writeVLQ(sb *strings.Builder, v int) {
	u := v << 1
	if v < 0 {
		u = (-v << 1) | 1
	}
	for {
		digit := u & 0x1f
		u >>= 5
		if u > 0 {
			digit |= 0x20
		}
		sb.WriteByte(base64Chars[digit])
		if u == 0 {
			return
		}
	}
}

// DecodeMappings expands a mappings string into absolute segments.
func DecodeMappings(mappings string) ([]Segment, error) {
	var out []Segment
	var srcLine, srcCol int
	for line, group := range strings.Split(mappings, ";") {
		genCol := 0
		if group == "" {
			continue
		}
		for _, raw := range strings.Split(group, ",") {
			fields, err := decodeFields(raw)
			if err != nil {
				return nil, err
			}
			if len(fields) != 1 && len(fields) < 4 {
				return nil, fmt.Errorf("segment %q has %d fields", raw, len(fields))
			}
			genCol += fields[0]
			if len(fields) == 1 {
				continue
			}
			srcLine += fields[2]
			srcCol += fields[3]
			out = append(out, Segment{GenLine: line, GenCol: genCol, SrcLine: srcLine, SrcCol: srcCol})
		}
	}
	return out, nil
}

func decodeFields(raw string) ([]int, error) {
	var fields []int
	value, shift := 0, 0
	for i := 0; i < len(raw); i++ {
		digit := strings.IndexByte(base64Chars, raw[i])
		if digit < 0 {
			return nil, fmt.Errorf("invalid base64 character %q", raw[i])
		}
		value |= (digit & 0x1f) << shift
		if digit&0x20 != 0 {
			shift += 5
			continue
		}
		if value&1 == 1 {
			fields = append(fields, -(value >> 1))
		} else {
			fields = append(fields, value>>1)
		}
		value, shift = 0, 0
	}
	if shift != 0 {
		return nil, fmt.Errorf("truncated segment %q", raw)
	}
	return fields, nil
}
