package dsmr

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dsmr-mqtt-bridge/internal/errors"
)

// goldenTelegram is a realistic DSMR 5.0 telegram with a valid checksum
const goldenTelegram = "/ISk5\\2MT382-1000\r\n" +
	"\r\n" +
	"1-3:0.2.8(50)\r\n" +
	"0-0:1.0.0(170102192002W)\r\n" +
	"0-0:96.1.1(4B384547303034303436333935353037)\r\n" +
	"1-0:1.8.1(004426.591*kWh)\r\n" +
	"1-0:1.8.2(002948.827*kWh)\r\n" +
	"1-0:2.8.1(002251.141*kWh)\r\n" +
	"1-0:2.8.2(006647.787*kWh)\r\n" +
	"0-0:96.14.0(0002)\r\n" +
	"1-0:1.7.0(00.329*kW)\r\n" +
	"1-0:2.7.0(00.000*kW)\r\n" +
	"0-0:96.7.21(00139)\r\n" +
	"0-0:96.7.9(00007)\r\n" +
	"1-0:32.32.0(00032)\r\n" +
	"1-0:32.36.0(00000)\r\n" +
	"1-0:32.7.0(236.1*V)\r\n" +
	"1-0:31.7.0(001*A)\r\n" +
	"1-0:21.7.0(00.329*kW)\r\n" +
	"1-0:22.7.0(00.000*kW)\r\n" +
	"0-1:24.2.1(170102161005W)(00981.443*m3)\r\n" +
	"!8DED\r\n"

func TestDecodeGoldenTelegram(t *testing.T) {
	telegram, err := NewDecoder("5").Decode([]byte(goldenTelegram))
	require.NoError(t, err)

	obj, ok := telegram[CurrentElectricityUsage]
	require.True(t, ok)
	assert.Equal(t, "00.329", obj.Value)
	assert.Equal(t, "kW", obj.Unit)

	tariff, ok := telegram[ElectricityActiveTariff]
	require.True(t, ok)
	assert.Equal(t, "0002", tariff.Value)
	assert.Empty(t, tariff.Unit)

	voltage, ok := telegram[InstantaneousVoltageL1]
	require.True(t, ok)
	assert.Equal(t, "236.1", voltage.Value)
	assert.Equal(t, "V", voltage.Unit)
}

func TestDecodeGasReadingWithTimestamp(t *testing.T) {
	telegram, err := NewDecoder("5").Decode([]byte(goldenTelegram))
	require.NoError(t, err)

	gas, ok := telegram[HourlyGasMeterReading]
	require.True(t, ok)
	assert.Equal(t, "00981.443", gas.Value)
	assert.Equal(t, "m3", gas.Unit)
	assert.Equal(t, "170102161005W", gas.Timestamp)
}

func TestDecodeRejectsBadChecksum(t *testing.T) {
	corrupted := strings.Replace(goldenTelegram, "!8DED", "!0000", 1)

	_, err := NewDecoder("5").Decode([]byte(corrupted))
	require.Error(t, err)

	var decodeErr *errors.DecodeError
	require.ErrorAs(t, err, &decodeErr)
}

func TestDecodeLegacyWithoutChecksum(t *testing.T) {
	// DSMR 2.2 telegrams carry no CRC and use the two-line gas format
	legacy := "/ISk5\\2MT382-1003\r\n" +
		"\r\n" +
		"0-0:96.1.1(4B384547303034303436333935353037)\r\n" +
		"1-0:1.8.1(12345.678*kWh)\r\n" +
		"0-0:96.14.0(0001)\r\n" +
		"1-0:1.7.0(001.19*kW)\r\n" +
		"0-1:24.3.0(090212160000)(00)(60)(1)(0-1:24.2.1)(m3)\r\n" +
		"(00123.456)\r\n" +
		"!\r\n"

	telegram, err := NewDecoder("2.2").Decode([]byte(legacy))
	require.NoError(t, err)

	gas, ok := telegram[GasMeterReadingLegacy]
	require.True(t, ok)
	assert.Equal(t, "00123.456", gas.Value)
	assert.Equal(t, "m3", gas.Unit)
	assert.Equal(t, "090212160000", gas.Timestamp)

	tariff := telegram[ElectricityActiveTariff]
	assert.Equal(t, "0001", tariff.Value)
}

func TestDecodeSkipsUnknownLines(t *testing.T) {
	telegram, err := NewDecoder("2.2").Decode([]byte(
		"/HDR\r\nnot-an-obis-line\r\n1-0:1.7.0(00.100*kW)\r\n!\r\n"))
	require.NoError(t, err)
	assert.Len(t, telegram, 1)
}

func TestChecksumKnownValue(t *testing.T) {
	data := []byte(goldenTelegram[:strings.LastIndexByte(goldenTelegram, '!')+1])
	assert.Equal(t, uint16(0x8DED), Checksum(data))
}
