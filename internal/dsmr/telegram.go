package dsmr

// ObisReference identifies one measured quantity in a telegram.
// The codes are the OBIS reduced IDs as they appear on the P1 wire.
type ObisReference string

// OBIS references used by the sensor mapping. Names follow the COSEM
// object names from the DSMR specification.
const (
	P1MessageTimestamp  ObisReference = "0-0:1.0.0"
	EquipmentIdentifier ObisReference = "0-0:96.1.1"

	CurrentElectricityUsage    ObisReference = "1-0:1.7.0"
	CurrentElectricityDelivery ObisReference = "1-0:2.7.0"
	ElectricityActiveTariff    ObisReference = "0-0:96.14.0"

	ElectricityUsedTariff1      ObisReference = "1-0:1.8.1"
	ElectricityUsedTariff2      ObisReference = "1-0:1.8.2"
	ElectricityDeliveredTariff1 ObisReference = "1-0:2.8.1"
	ElectricityDeliveredTariff2 ObisReference = "1-0:2.8.2"

	// Totals without tariff split. Luxembourg (5L) meters report both
	// directions, the rest only the imported total.
	ElectricityImportedTotal ObisReference = "1-0:1.8.0"
	ElectricityExportedTotal ObisReference = "1-0:2.8.0"

	InstantaneousActivePowerL1Positive ObisReference = "1-0:21.7.0"
	InstantaneousActivePowerL2Positive ObisReference = "1-0:41.7.0"
	InstantaneousActivePowerL3Positive ObisReference = "1-0:61.7.0"
	InstantaneousActivePowerL1Negative ObisReference = "1-0:22.7.0"
	InstantaneousActivePowerL2Negative ObisReference = "1-0:42.7.0"
	InstantaneousActivePowerL3Negative ObisReference = "1-0:62.7.0"

	ShortPowerFailureCount ObisReference = "0-0:96.7.21"
	LongPowerFailureCount  ObisReference = "0-0:96.7.9"

	VoltageSagL1Count   ObisReference = "1-0:32.32.0"
	VoltageSagL2Count   ObisReference = "1-0:52.32.0"
	VoltageSagL3Count   ObisReference = "1-0:72.32.0"
	VoltageSwellL1Count ObisReference = "1-0:32.36.0"
	VoltageSwellL2Count ObisReference = "1-0:52.36.0"
	VoltageSwellL3Count ObisReference = "1-0:72.36.0"

	InstantaneousVoltageL1 ObisReference = "1-0:32.7.0"
	InstantaneousVoltageL2 ObisReference = "1-0:52.7.0"
	InstantaneousVoltageL3 ObisReference = "1-0:72.7.0"
	InstantaneousCurrentL1 ObisReference = "1-0:31.7.0"
	InstantaneousCurrentL2 ObisReference = "1-0:51.7.0"
	InstantaneousCurrentL3 ObisReference = "1-0:71.7.0"

	// Gas meter readings on M-Bus channel 1. Which one a meter reports
	// depends on the DSMR version.
	HourlyGasMeterReading        ObisReference = "0-1:24.2.1"
	BelgiumHourlyGasMeterReading ObisReference = "0-1:24.2.3"
	GasMeterReadingLegacy        ObisReference = "0-1:24.3.0"
)

// Object is one decoded telegram field: the raw value as printed on the
// wire, an optional unit and an optional meter-local timestamp.
type Object struct {
	Value     string
	Unit      string
	Timestamp string
}

// Telegram is one complete decoded meter snapshot keyed by OBIS reference.
// It is never mutated after creation; the empty telegram is the
// "disconnected / no data" sentinel.
type Telegram map[ObisReference]Object

// Versions supported by the decoding dialects
var Versions = []string{"2.2", "4", "5", "5B", "5L"}

// ValidVersion reports whether version names a known DSMR dialect
func ValidVersion(version string) bool {
	for _, v := range Versions {
		if v == version {
			return true
		}
	}
	return false
}
