package dsmr

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"dsmr-mqtt-bridge/internal/errors"
)

// Pre-compiled patterns for telegram lines.
// A data line is an OBIS reduced ID followed by one or more
// parenthesized groups, e.g. "1-0:1.7.0(00.329*kW)" or
// "0-1:24.2.1(170102161005W)(00981.443*m3)".
var (
	objectLinePattern = regexp.MustCompile(`^(\d+-\d+:\d+\.\d+\.\d+)((?:\([^()]*\))+)$`)
	valueGroupPattern = regexp.MustCompile(`\(([^()]*)\)`)
)

// Decoder turns one framed telegram into a Telegram mapping.
// The DSMR version selects the decoding dialect: versions 4 and later
// carry a CRC16 that is verified, 2.2 telegrams have none.
type Decoder struct {
	version string
}

// NewDecoder creates a decoder for the given DSMR version
func NewDecoder(version string) *Decoder {
	return &Decoder{version: version}
}

// Decode parses a complete telegram frame, from the '/' identification
// line through the '!' checksum line.
func (d *Decoder) Decode(frame []byte) (Telegram, error) {
	if err := d.verifyChecksum(frame); err != nil {
		return nil, err
	}

	telegram := Telegram{}

	// Legacy gas meters (DSMR 2.2) put the reading on the line after the
	// 0-1:24.3.0 header, so the unit has to be carried over one line.
	var pendingGasUnit string
	var pendingGasTimestamp string

	for _, line := range strings.Split(string(frame), "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" || line[0] == '/' || line[0] == '!' {
			pendingGasUnit = ""
			continue
		}

		if pendingGasUnit != "" && line[0] == '(' {
			groups := valueGroupPattern.FindAllStringSubmatch(line, 1)
			if len(groups) == 1 {
				telegram[GasMeterReadingLegacy] = Object{
					Value:     groups[0][1],
					Unit:      pendingGasUnit,
					Timestamp: pendingGasTimestamp,
				}
			}
			pendingGasUnit = ""
			continue
		}
		pendingGasUnit = ""

		m := objectLinePattern.FindStringSubmatch(line)
		if m == nil {
			continue // unknown or free-form line, skip
		}
		ref := ObisReference(m[1])
		groups := valueGroupPattern.FindAllStringSubmatch(m[2], -1)

		if ref == GasMeterReadingLegacy {
			// header: (timestamp)(status)(..)(..)(channel obis)(unit)
			if len(groups) >= 2 {
				pendingGasTimestamp = groups[0][1]
				pendingGasUnit = groups[len(groups)-1][1]
			}
			continue
		}

		obj := Object{}
		switch len(groups) {
		case 0:
			continue
		case 1:
			obj.Value, obj.Unit = splitValueUnit(groups[0][1])
		default:
			// M-Bus style: timestamp group first, value*unit last
			obj.Timestamp = groups[0][1]
			obj.Value, obj.Unit = splitValueUnit(groups[len(groups)-1][1])
		}
		telegram[ref] = obj
	}

	return telegram, nil
}

// verifyChecksum validates the trailing CRC16 for dialects that carry one
func (d *Decoder) verifyChecksum(frame []byte) error {
	if d.version == "2.2" {
		return nil // no checksum in DSMR 2.2
	}

	bang := -1
	for i := len(frame) - 1; i >= 0; i-- {
		if frame[i] == '!' {
			bang = i
			break
		}
	}
	if bang < 0 {
		return errors.NewDecodeError("verify checksum", fmt.Errorf("telegram has no '!' terminator"), "")
	}

	sumText := strings.TrimSpace(string(frame[bang+1:]))
	if len(sumText) != 4 {
		return errors.NewDecodeError("verify checksum", fmt.Errorf("checksum %q is not 4 hex digits", sumText), sumText)
	}
	want, err := strconv.ParseUint(sumText, 16, 16)
	if err != nil {
		return errors.NewDecodeError("verify checksum", err, sumText)
	}

	if got := Checksum(frame[:bang+1]); got != uint16(want) {
		return errors.NewDecodeError("verify checksum",
			fmt.Errorf("checksum mismatch: telegram says %04X, computed %04X", want, got), sumText)
	}
	return nil
}

// splitValueUnit splits a "value*unit" group into its parts.
// Groups without a '*' carry no unit (tariff codes, counters).
func splitValueUnit(group string) (value, unit string) {
	if i := strings.IndexByte(group, '*'); i >= 0 {
		return group[:i], group[i+1:]
	}
	return group, ""
}
