package sensor

import (
	"dsmr-mqtt-bridge/internal/dsmr"
)

// mapping binds a sensor name to its OBIS reference, the unit the meter
// reports it in, and the force-update flag
type mapping struct {
	name        string
	obis        dsmr.ObisReference
	unit        string
	forceUpdate bool
}

// Units as they appear on the P1 wire. The unit is carried statically so
// discovery can declare it before the first telegram arrives.
const (
	unitKW  = "kW"
	unitKWh = "kWh"
	unitV   = "V"
	unitA   = "A"
	unitM3  = "m3"
)

// baseMapping is the electricity sensor table common to all DSMR versions.
// Cumulative counters force updates so long-term statistics keep flowing
// even when the value repeats.
var baseMapping = []mapping{
	{"Power Consumption", dsmr.CurrentElectricityUsage, unitKW, true},
	{"Power Production", dsmr.CurrentElectricityDelivery, unitKW, true},
	{"Power Tariff", dsmr.ElectricityActiveTariff, "", false},
	{"Energy Consumption (tarif 1)", dsmr.ElectricityUsedTariff1, unitKWh, true},
	{"Energy Consumption (tarif 2)", dsmr.ElectricityUsedTariff2, unitKWh, true},
	{"Energy Production (tarif 1)", dsmr.ElectricityDeliveredTariff1, unitKWh, true},
	{"Energy Production (tarif 2)", dsmr.ElectricityDeliveredTariff2, unitKWh, true},
	{"Power Consumption Phase L1", dsmr.InstantaneousActivePowerL1Positive, unitKW, false},
	{"Power Consumption Phase L2", dsmr.InstantaneousActivePowerL2Positive, unitKW, false},
	{"Power Consumption Phase L3", dsmr.InstantaneousActivePowerL3Positive, unitKW, false},
	{"Power Production Phase L1", dsmr.InstantaneousActivePowerL1Negative, unitKW, false},
	{"Power Production Phase L2", dsmr.InstantaneousActivePowerL2Negative, unitKW, false},
	{"Power Production Phase L3", dsmr.InstantaneousActivePowerL3Negative, unitKW, false},
	{"Short Power Failure Count", dsmr.ShortPowerFailureCount, "", false},
	{"Long Power Failure Count", dsmr.LongPowerFailureCount, "", false},
	{"Voltage Sags Phase L1", dsmr.VoltageSagL1Count, "", false},
	{"Voltage Sags Phase L2", dsmr.VoltageSagL2Count, "", false},
	{"Voltage Sags Phase L3", dsmr.VoltageSagL3Count, "", false},
	{"Voltage Swells Phase L1", dsmr.VoltageSwellL1Count, "", false},
	{"Voltage Swells Phase L2", dsmr.VoltageSwellL2Count, "", false},
	{"Voltage Swells Phase L3", dsmr.VoltageSwellL3Count, "", false},
	{"Voltage Phase L1", dsmr.InstantaneousVoltageL1, unitV, false},
	{"Voltage Phase L2", dsmr.InstantaneousVoltageL2, unitV, false},
	{"Voltage Phase L3", dsmr.InstantaneousVoltageL3, unitV, false},
	{"Current Phase L1", dsmr.InstantaneousCurrentL1, unitA, false},
	{"Current Phase L2", dsmr.InstantaneousCurrentL2, unitA, false},
	{"Current Phase L3", dsmr.InstantaneousCurrentL3, unitA, false},
}

// GasMeterReading selects the gas reading OBIS reference for a DSMR version
func GasMeterReading(version string) dsmr.ObisReference {
	switch version {
	case "4", "5", "5L":
		return dsmr.HourlyGasMeterReading
	case "5B":
		return dsmr.BelgiumHourlyGasMeterReading
	default:
		return dsmr.GasMeterReadingLegacy
	}
}

// DefaultSensors builds the full sensor set for one bridge instance:
// the electricity table, the version-specific totals, and a gas sensor
// when a gas meter serial is configured. Sensors are created once at
// setup and live until teardown.
func DefaultSensors(version string, precision int, serialID, serialIDGas string) []*MeterSensor {
	table := make([]mapping, 0, len(baseMapping)+2)
	table = append(table, baseMapping...)

	// Luxembourg meters report totals in both directions without a
	// tariff split; everywhere else only the imported total exists.
	if version == "5L" {
		table = append(table,
			mapping{"Energy Consumption (total)", dsmr.ElectricityImportedTotal, unitKWh, true},
			mapping{"Energy Production (total)", dsmr.ElectricityExportedTotal, unitKWh, true},
		)
	} else {
		table = append(table,
			mapping{"Energy Consumption (total)", dsmr.ElectricityImportedTotal, unitKWh, true},
		)
	}

	sensors := make([]*MeterSensor, 0, len(table)+1)
	for _, m := range table {
		sensors = append(sensors,
			NewMeterSensor(m.name, DeviceNameEnergy, serialID, m.obis, m.unit, version, precision, m.forceUpdate))
	}

	if serialIDGas != "" {
		sensors = append(sensors,
			NewMeterSensor("Gas Consumption", DeviceNameGas, serialIDGas, GasMeterReading(version), unitM3, version, precision, true))
	}

	return sensors
}
