package main

import (
	"fmt"
	"os"

	"dsmr-mqtt-bridge/internal/config"
	"dsmr-mqtt-bridge/internal/sensor"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: validate_config <config-file>")
		os.Exit(1)
	}

	configPath := os.Args[1]
	fmt.Printf("📄 Loading config from: %s\n", configPath)

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		fmt.Printf("❌ Error loading config: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("✅ Config loaded successfully!\n")
	conn := cfg.Connection
	if conn.Host != "" {
		fmt.Printf("   Meter: tcp://%s:%d\n", conn.Host, conn.Port)
	} else {
		fmt.Printf("   Meter: serial %s\n", conn.Device)
	}
	fmt.Printf("   DSMR version: %s\n", conn.DSMRVersion)
	fmt.Printf("   Reconnect interval: %ds\n", conn.ReconnectInterval)
	fmt.Printf("   Time between updates: %ds\n", conn.TimeBetweenUpdates)
	fmt.Printf("   MQTT Broker: %s:%d\n", cfg.MQTT.Broker, cfg.MQTT.Port)

	sensors := sensor.DefaultSensors(conn.DSMRVersion, conn.Precision, conn.SerialID, conn.SerialIDGas)
	fmt.Printf("   Sensors: %d\n", len(sensors))
	for _, s := range sensors {
		fmt.Printf("     - %s (%s, obis %s, device %s)\n",
			s.Name(), s.UniqueID(), s.Obis(), s.DeviceName())
	}

	if conn.SerialIDGas == "" {
		fmt.Println("   Gas meter: not configured")
	}

	fmt.Println("\n✅ Configuration is valid!")
}
